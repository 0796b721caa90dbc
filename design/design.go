package design

import (
    . "goa.design/goa/v3/dsl"
)

// API definition
var _ = API("trafficwatch", func() {
    Title("TrafficWatch Violation Detection System")
    Description("Traffic camera pipeline with vehicle detection, violation evidence recording and congestion analytics")
    Version("1.0")
    Server("trafficwatch", func() {
        Host("localhost", func() {
            URI("http://localhost:8080")
        })
        Host("production", func() {
            URI("https://trafficwatch.example.com")
        })
    })
})

// Error types
var BadRequestError = Type("BadRequestError", func() {
    Description("Bad request error")
    Field(1, "message", String, "Error message")
    Field(2, "details", String, "Error details")
    Required("message")
})

var UnauthorizedError = Type("UnauthorizedError", func() {
    Description("Authentication failure")
    Field(1, "message", String, "Error message")
    Required("message")
})

var InternalError = Type("InternalError", func() {
    Description("Internal server error")
    Field(1, "message", String, "Error message")
    Required("message")
})

// Data types
var BoundingBox = Type("BoundingBox", func() {
    Description("Bounding box in pixel coordinates")
    Field(1, "x1", Int, "Left edge")
    Field(2, "y1", Int, "Top edge")
    Field(3, "x2", Int, "Right edge")
    Field(4, "y2", Int, "Bottom edge")
    Required("x1", "y1", "x2", "y2")
})

var VehicleDetection = Type("VehicleDetection", func() {
    Description("A detected vehicle in one frame")
    Field(1, "class", String, "Vehicle class", func() {
        Enum("car", "motorcycle", "bus", "truck")
    })
    Field(2, "confidence", Float32, "Detection confidence (0-1)")
    Field(3, "bbox", BoundingBox, "Vehicle location")
    Required("class", "confidence", "bbox")
})

var ViolationInfo = Type("ViolationInfo", func() {
    Description("A recorded traffic violation")
    Field(1, "id", String, "Violation identifier")
    Field(2, "type", String, "Violation type", func() {
        Enum("no_helmet", "no_seatbelt", "triple_riding", "wrong_way")
    })
    Field(3, "source", String, "Capture source identifier")
    Field(4, "timestamp", String, "Detection timestamp", func() {
        Format(FormatDateTime)
    })
    Field(5, "confidence", Float32, "Detection confidence (0-1)")
    Field(6, "image_path", String, "Path to evidence image crop")
    Field(7, "plate_number", String, "Recognized license plate, if any")
    Required("id", "type", "source", "timestamp")
})

var PipelineStatus = Type("PipelineStatus", func() {
    Description("Live pipeline status snapshot")
    Field(1, "is_running", Boolean, "Whether the stream worker is running")
    Field(2, "fps", Float64, "Processing frames per second")
    Field(3, "frame_count", Int64, "Frames processed since start")
    Field(4, "current_vehicle_count", Int, "Vehicles in the most recent frame")
    Field(5, "current_violation_counts", MapOf(String, Int), "Violations in the most recent frame, by type")
    Field(6, "traffic_density", Float64, "Mean vehicle count over the trailing window")
    Field(7, "predicted_congestion", Float64, "Vehicle count projected over the lookahead window")
    Required("is_running", "fps", "frame_count")
})

var AnalysisResult = Type("AnalysisResult", func() {
    Description("Result of analyzing a single uploaded frame")
    Field(1, "vehicle_count", Int, "Vehicles detected")
    Field(2, "vehicles", ArrayOf(VehicleDetection), "Detected vehicles")
    Field(3, "violation_counts", MapOf(String, Int), "Violations by type")
    Field(4, "traffic_density", Float64, "Density over the trailing window")
    Field(5, "predicted_congestion", Float64, "Projected vehicle count")
    Field(6, "timestamp", String, "Processing timestamp", func() {
        Format(FormatDateTime)
    })
    Required("vehicle_count", "violation_counts")
})

var TrafficSummary = Type("TrafficSummary", func() {
    Description("Aggregated violation and traffic statistics")
    Field(1, "source", String, "Capture source identifier")
    Field(2, "window_hours", Int, "Aggregation window in hours")
    Field(3, "total_violations", Int, "Total violations in the window")
    Field(4, "violations_by_type", MapOf(String, Int), "Per-type violation counts")
    Field(5, "traffic_density", Float64, "Density over the trailing window")
    Field(6, "predicted_congestion", Float64, "Projected vehicle count")
    Required("window_hours", "total_violations")
})

// Authentication service
var _ = Service("auth", func() {
    Description("Operator authentication")

    Method("login", func() {
        Description("Exchange credentials for a JWT token")
        Payload(func() {
            Field(1, "username", String, "Operator username")
            Field(2, "password", String, "Operator password")
            Required("username", "password")
        })
        Result(func() {
            Field(1, "token", String, "JWT bearer token")
            Field(2, "expires_at", Int64, "Unix expiry timestamp")
            Required("token", "expires_at")
        })
        Error("unauthorized", UnauthorizedError, "Invalid credentials")
        HTTP(func() {
            POST("/api/auth/login")
            Response(StatusOK)
            Response("unauthorized", StatusUnauthorized)
        })
    })
})

// Traffic pipeline service
var _ = Service("traffic", func() {
    Description("Live pipeline status, ad-hoc frame analysis and traffic statistics")

    Method("status", func() {
        Description("Get the live pipeline status")
        Result(PipelineStatus)
        HTTP(func() {
            GET("/api/status")
            Response(StatusOK)
        })
    })

    Method("analyze", func() {
        Description("Run one uploaded frame through the detection pipeline")
        Payload(func() {
            Field(1, "file", Bytes, "JPEG frame to analyze")
            Required("file")
        })
        Result(AnalysisResult)
        Error("bad_request", BadRequestError, "Frame could not be decoded")
        HTTP(func() {
            POST("/api/traffic/analyze")
            MultipartRequest()
            Response(StatusOK)
            Response("bad_request", StatusUnprocessableEntity)
        })
    })

    Method("summary", func() {
        Description("Aggregate violation counts and traffic metrics over a trailing window")
        Payload(func() {
            Field(1, "hours", Int, "Window size in hours", func() {
                Default(24)
            })
        })
        Result(TrafficSummary)
        HTTP(func() {
            GET("/api/traffic/summary")
            Param("hours")
            Response(StatusOK)
        })
    })
})

// Violation history service
var _ = Service("violations", func() {
    Description("Recorded violation queries")

    Method("recent", func() {
        Description("List the newest recorded violations")
        Payload(func() {
            Field(1, "type", String, "Filter by violation type", func() {
                Enum("no_helmet", "no_seatbelt", "triple_riding", "wrong_way")
            })
            Field(2, "limit", Int, "Maximum results", func() {
                Default(50)
            })
        })
        Result(ArrayOf(ViolationInfo))
        HTTP(func() {
            GET("/api/violations/recent")
            Param("type")
            Param("limit")
            Response(StatusOK)
        })
    })
})

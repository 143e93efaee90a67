// Package middleware provides the HTTP middleware in front of the template API.
//
// SessionMiddleware reads the identity the upstream gateway established
// (X-Actor-ID, X-Organization-ID) into the request context. RateLimitMiddleware
// throttles mutating requests per actor, backed either by the in-process
// RateLimiter or by the Redis DistributedRateLimiter when several instances
// share limits.
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, nil, "")
//	router.Use(middleware.SessionMiddleware)
//	router.Use(middleware.NewRateLimitMiddleware(limiter, logger, true).Handler)
package middleware

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/concertforge/ticket-engine/internal/domain/entities"
	"github.com/concertforge/ticket-engine/pkg/utils"
)

// ActorContextKey is the gin.Context key Auth stores the constructed entities.Actor
// under (§9: "Duck-typed req.user becomes a single Actor value constructed at the HTTP
// boundary").
const ActorContextKey = "actor"

// Auth parses the bearer token and stores the resulting entities.Actor in the request
// context. It is the only place in the system that touches a JWT; everything past it
// deals exclusively with entities.Actor.
func Auth(jwtUtils *utils.JWTUtils) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, err := utils.ExtractTokenFromHeader(header)
		if err != nil {
			utils.Unauthorized(c, "missing or malformed authorization header")
			c.Abort()
			return
		}

		claims, err := jwtUtils.ValidateAccessToken(token)
		if err != nil {
			utils.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			utils.Unauthorized(c, "invalid token subject")
			c.Abort()
			return
		}

		assigned := make([]uuid.UUID, 0, len(claims.AssignedEvents))
		for _, raw := range claims.AssignedEvents {
			if id, err := uuid.Parse(raw); err == nil {
				assigned = append(assigned, id)
			}
		}

		c.Set(ActorContextKey, entities.Actor{
			UserID:         userID,
			Email:          claims.Email,
			Role:           claims.Role,
			AssignedEvents: assigned,
		})
		c.Next()
	}
}

// ActorFromContext extracts the Actor set by Auth. It is only ever missing if Auth was
// not mounted on the route, which is a routing bug.
func ActorFromContext(c *gin.Context) (entities.Actor, bool) {
	raw, ok := c.Get(ActorContextKey)
	if !ok {
		return entities.Actor{}, false
	}
	actor, ok := raw.(entities.Actor)
	return actor, ok
}

// RequireRole aborts with 403 unless the request's Actor has one of the allowed roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok || !allowed[actor.Role] {
			utils.Forbidden(c, "insufficient role for this operation")
			c.Abort()
			return
		}
		c.Next()
	}
}

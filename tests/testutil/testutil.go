// Package testutil drives the budget HTTP API in tests and records the
// domain events it raises.
package testutil

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var actorNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// ActorID derives a stable user id from name, e.g. ActorID("accountant")
func ActorID(name string) uuid.UUID {
	return uuid.NewSHA1(actorNamespace, []byte(name))
}

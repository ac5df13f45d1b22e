package importer

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookring/internal/auth"
	"bookring/internal/listings"
	"bookring/internal/lookup"
)

type Handler struct {
	Lookup  *lookup.Client
	Service *listings.Service
}

func NewHandler(client *lookup.Client, svc *listings.Service) *Handler {
	return &Handler{Lookup: client, Service: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import/csv", h.importCSV)
}

// importCSV takes a raw CSV body, resolves each row against the
// metadata API, and lists every resolved row for the caller. The
// response itemizes row outcomes; failures only reduce the tally.
func (h *Handler) importCSV(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, err := Parse(c.Request.Body)
	if err != nil {
		if errors.Is(err, ErrNoColumns) || errors.Is(err, ErrNoRows) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid csv"})
		return
	}

	found := Resolve(c.Request.Context(), h.Lookup, rows)
	listed := Submit(c.Request.Context(), h.Service, claims.UserID, rows)

	c.JSON(http.StatusOK, gin.H{
		"rows":   rows,
		"found":  found,
		"listed": listed,
	})
}

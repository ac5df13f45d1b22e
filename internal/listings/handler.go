package listings

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bookring/internal/auth"
	"bookring/internal/feed"
	"bookring/internal/lookup"
	"bookring/pkg/geo"
	"bookring/pkg/models"
)

type Notifier interface {
	BroadcastNewListing(listingID, bookID, title string)
}

type Handler struct {
	Repo    *Repo
	Service *Service
	Lookup  *lookup.Client
	Hub     *feed.Hub
	Notify  Notifier
}

func NewHandler(repo *Repo, svc *Service, client *lookup.Client, hub *feed.Hub, notifier Notifier) *Handler {
	return &Handler{Repo: repo, Service: svc, Lookup: client, Hub: hub, Notify: notifier}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/listings", h.list)
	rg.GET("/listings/nearby", h.nearby)
	rg.GET("/listings/:id", h.getOne)
}

// RegisterResolveRoute hangs the search-result resolver off the books
// group: a catalog hit becomes an open listing when one is available.
func (h *Handler) RegisterResolveRoute(rg *gin.RouterGroup) {
	rg.GET("/:id/listing", h.resolveBook)
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/listings", h.create)
	rg.PATCH("/listings/:id/availability", h.setAvailability)
	rg.DELETE("/listings/:id", h.remove)
	rg.GET("/users/me/listings", h.mine)
}

type createReq struct {
	Book              models.BookMeta `json:"book"`
	ISBN              string          `json:"isbn"`
	Condition         string          `json:"condition"`
	ConditionNotes    string          `json:"condition_notes"`
	LendingDuration   int             `json:"lending_duration"`
	PickupPreferences string          `json:"pickup_preferences"`
	Latitude          *float64        `json:"latitude"`
	Longitude         *float64        `json:"longitude"`
}

func (h *Handler) create(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	// ISBN-only requests go through the metadata lookup first, same as
	// the single-book listing form.
	if req.Book.Title == "" {
		isbn := strings.TrimSpace(req.ISBN)
		if isbn == "" || h.Lookup == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "book metadata or isbn required"})
			return
		}
		meta, err := h.Lookup.ByISBN(c.Request.Context(), isbn)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "lookup failed"})
			return
		}
		if meta == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no book found for isbn"})
			return
		}
		req.Book = *meta
	}

	if NormalizeCondition(req.Condition) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "condition must be one of: New, Like New, Very Good, Good, Fair, Poor",
		})
		return
	}

	listing, bookCreated, err := h.Service.ListBook(c.Request.Context(), claims.UserID, ListRequest{
		Meta:              req.Book,
		Condition:         req.Condition,
		ConditionNotes:    strings.TrimSpace(req.ConditionNotes),
		LendingDuration:   req.LendingDuration,
		PickupPreferences: strings.TrimSpace(req.PickupPreferences),
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list book"})
		return
	}

	if h.Hub != nil {
		ev := feed.ListingEvent{
			Type:      "listing.created",
			ListingID: listing.ID,
			BookID:    listing.BookID,
			LenderID:  listing.LenderID,
			Title:     req.Book.Title,
			Available: true,
			At:        time.Now().UTC(),
		}
		go h.Hub.BroadcastJSON(ev)
	}
	if h.Notify != nil {
		go h.Notify.BroadcastNewListing(listing.ID, listing.BookID, req.Book.Title)
	}

	c.JSON(http.StatusCreated, gin.H{
		"listing":      listing,
		"book_created": bookCreated,
	})
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Category:      c.Query("category"),
		OnlyAvailable: c.DefaultQuery("available", "true") != "false",
		Limit:         parseInt(c.Query("limit"), 20),
		Offset:        parseInt(c.Query("offset"), 0),
	}

	items, total, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	lat, lon := viewerCoords(c)
	annotateDistances(items, lat, lon)

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

// nearby is the proximity-sorted feed: listings with unknown distance
// sort after everything with a real estimate.
func (h *Handler) nearby(c *gin.Context) {
	lat, lon := viewerCoords(c)
	if lat == nil || lon == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon are required"})
		return
	}

	q := ListQuery{
		Category:      c.Query("category"),
		OnlyAvailable: true,
		Limit:         parseInt(c.Query("limit"), 20),
		Offset:        parseInt(c.Query("offset"), 0),
	}

	items, total, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	annotateDistances(items, lat, lon)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DistanceValue < items[j].DistanceValue
	})

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getOne(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	d, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	lat, lon := viewerCoords(c)
	d.Distance, d.DistanceValue = geo.Estimate(lat, lon, d.Latitude, d.Longitude)

	c.JSON(http.StatusOK, d)
}

func (h *Handler) resolveBook(c *gin.Context) {
	bookID := strings.TrimSpace(c.Param("id"))
	d, err := h.Repo.FirstAvailableByBook(c.Request.Context(), bookID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve failed"})
		return
	}
	if d == nil {
		// no available copy: the client falls back to a full title search
		c.JSON(http.StatusNotFound, gin.H{"error": "no available listing"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) mine(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	q := ListQuery{
		LenderID: claims.UserID,
		Limit:    parseInt(c.Query("limit"), 50),
		Offset:   parseInt(c.Query("offset"), 0),
	}
	items, total, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"items": items,
	})
}

type availabilityReq struct {
	Available *bool `json:"available"`
}

func (h *Handler) setAvailability(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "available (bool) required"})
		return
	}

	ok, err := h.Repo.SetAvailability(c.Request.Context(), id, claims.UserID, *req.Available)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if h.Hub != nil {
		ev := feed.ListingEvent{
			Type:      "listing.updated",
			ListingID: id,
			LenderID:  claims.UserID,
			Available: *req.Available,
			At:        time.Now().UTC(),
		}
		go h.Hub.BroadcastJSON(ev)
	}

	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (h *Handler) remove(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	ok, err := h.Repo.Delete(c.Request.Context(), id, claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if h.Hub != nil {
		ev := feed.ListingEvent{
			Type:      "listing.deleted",
			ListingID: id,
			LenderID:  claims.UserID,
			At:        time.Now().UTC(),
		}
		go h.Hub.BroadcastJSON(ev)
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func annotateDistances(items []models.ListingDetail, lat, lon *float64) {
	for i := range items {
		items[i].Distance, items[i].DistanceValue =
			geo.Estimate(lat, lon, items[i].Latitude, items[i].Longitude)
	}
}

func viewerCoords(c *gin.Context) (*float64, *float64) {
	lat := parseFloat(c.Query("lat"))
	lon := parseFloat(c.Query("lon"))
	if lat == nil || lon == nil {
		return nil, nil
	}
	return lat, lon
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

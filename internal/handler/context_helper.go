package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sims-api/internal/middleware"
	"github.com/noah-isme/sims-api/internal/models"
	appErrors "github.com/noah-isme/sims-api/pkg/errors"
	"github.com/noah-isme/sims-api/pkg/response"
)

const dateLayout = "2006-01-02"

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext builds the service actor from the JWT claims. It writes a 401 and returns false
// when the request is anonymous.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return models.Actor{
		UserID:    claims.UserID,
		Role:      claims.Role,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

type pageParams struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

func pageQuery(c *gin.Context) pageParams {
	p := pageParams{Page: 1, PageSize: 20}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		p.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		p.PageSize = size
	}
	p.SortBy = c.Query("sort_by")
	p.SortOrder = c.Query("sort_order")
	return p
}

func boolQuery(c *gin.Context, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// dateQuery parses an optional YYYY-MM-DD query value. It writes a 400 and returns false on bad input.
func dateQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, key+" must use YYYY-MM-DD"))
		return nil, false
	}
	return &parsed, true
}

// cachedJSON writes an aggregate response with cache, scope and timing metadata.
func cachedJSON(c *gin.Context, data interface{}, hit bool, start time.Time) {
	middleware.SetCacheHit(c, hit)
	if claims := claimsFromContext(c); claims != nil {
		middleware.SetScope(c, string(claims.Role))
	}
	response.JSON(c, http.StatusOK, data, nil, middleware.FinalMeta(c, start))
}

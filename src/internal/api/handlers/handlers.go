package handlers

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"

	"github.com/casapps/casrecipes/src/internal/errors"
	"github.com/casapps/casrecipes/src/internal/services"
)

// bind decodes the request body into req and runs the struct validator
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	if err := c.Validate(req); err != nil {
		return errors.FromValidator(err)
	}
	return nil
}

// parseID reads a positive numeric path parameter. Anything else is a 404,
// as no resource could live at that path.
func parseID(c echo.Context, name, resource string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.NotFoundError(resource, raw)
	}
	return uint(id), nil
}

// Paginator reads page/limit query parameters and builds page envelopes
type Paginator struct {
	defaultLimit int
	maxLimit     int
}

// NewPaginator creates a paginator from the pagination settings
func NewPaginator(cfg *viper.Viper) Paginator {
	return Paginator{
		defaultLimit: cfg.GetInt("pagination.page_size"),
		maxLimit:     cfg.GetInt("pagination.max_page_size"),
	}
}

// Page parses ?page and ?limit. Both must be positive integers when present.
func (p Paginator) Page(c echo.Context) (services.Page, error) {
	v := errors.NewValidator()
	page := services.Page{}

	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.AddError("page", "Ensure this value is a positive integer.")
		}
		page.Page = n
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.AddError("limit", "Ensure this value is a positive integer.")
		}
		page.Limit = n
	}
	if err := v.CreateValidationError(); err != nil {
		return services.Page{}, err
	}
	return page.Normalize(p.defaultLimit, p.maxLimit), nil
}

// Response wraps results with the total count and links to the neighbouring
// pages, keeping every other query parameter of the request
func (p Paginator) Response(c echo.Context, page services.Page, count int64, results interface{}) PageResponse {
	resp := PageResponse{Count: count, Results: results}
	if int64(page.Page*page.Limit) < count {
		next := pageURL(c, page.Page+1)
		resp.Next = &next
	}
	if page.Page > 1 {
		prev := pageURL(c, page.Page-1)
		resp.Previous = &prev
	}
	return resp
}

func pageURL(c echo.Context, page int) string {
	req := c.Request()
	u := url.URL{
		Scheme: c.Scheme(),
		Host:   req.Host,
		Path:   req.URL.Path,
	}
	query := req.URL.Query()
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = query.Encode()
	return u.String()
}

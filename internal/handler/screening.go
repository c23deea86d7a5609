package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-inventory/internal/inventory"
	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// ScreeningHandler instantiates seat maps and renders them.
type ScreeningHandler struct {
	svc *inventory.Service
	errorWriter
}

func NewScreeningHandler(svc *inventory.Service, log logger.Logger) *ScreeningHandler {
	return &ScreeningHandler{svc: svc, errorWriter: errorWriter{log: log}}
}

type seatInput struct {
	ID             string `json:"id"`   // row label + column, e.g. "B7"
	Type           string `json:"type"` // STANDARD when empty
	BasePriceCents uint32 `json:"base_price_cents"`
}

type registerRequest struct {
	ID         string            `json:"id"`
	HallID     string            `json:"hall_id"`
	MovieTitle string            `json:"movie_title"`
	StartsAt   time.Time         `json:"starts_at"`
	EndsAt     time.Time         `json:"ends_at"`
	Layout     *inventory.Layout `json:"layout"` // rectangular hall, or
	Seats      []seatInput       `json:"seats"`  // an explicit seat list
}

// Register handles POST /v1/screenings.  The hall geometry is given
// either as a layout or as an explicit seat list, never both.
func (h *ScreeningHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if (req.Layout == nil) == (len(req.Seats) == 0) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "exactly one of layout or seats is required"})
	}

	var seats []model.Seat
	if req.Layout != nil {
		s, err := req.Layout.Seats()
		if err != nil {
			return h.write(c, err)
		}
		seats = s
	} else {
		seats = make([]model.Seat, 0, len(req.Seats))
		for _, in := range req.Seats {
			id := strings.ToUpper(strings.TrimSpace(in.ID))
			row, col, ok := inventory.ParseSeatID(id)
			if !ok {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id: " + in.ID})
			}
			typ := model.SeatType(strings.ToUpper(in.Type))
			if typ == "" {
				typ = model.SeatStandard
			}
			seats = append(seats, model.Seat{
				ID:             id,
				Row:            row,
				Col:            uint32(col),
				Type:           typ,
				BasePriceCents: in.BasePriceCents,
			})
		}
	}

	snap, err := h.svc.RegisterScreening(c.Request().Context(), model.Screening{
		ID:         strings.TrimSpace(req.ID),
		HallID:     req.HallID,
		MovieTitle: req.MovieTitle,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
	}, seats)
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusCreated, snap)
}

// SeatMap handles GET /v1/screenings/:id/seats.
func (h *ScreeningHandler) SeatMap(c echo.Context) error {
	snap, err := h.svc.Store.Snapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.write(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

package inventory

import (
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// Layout describes a rectangular hall.  Rows are labelled A, B, ... Z,
// AA, AB and so on; rows named in VIPRows or CoupleRows get that seat
// type and price, every other row is STANDARD.
type Layout struct {
	Rows             int      `json:"rows"`
	Cols             int      `json:"cols"`
	BasePriceCents   uint32   `json:"base_price_cents"`
	VIPRows          []string `json:"vip_rows,omitempty"`
	VIPPriceCents    uint32   `json:"vip_price_cents,omitempty"`
	CoupleRows       []string `json:"couple_rows,omitempty"`
	CouplePriceCents uint32   `json:"couple_price_cents,omitempty"`
	Disabled         []string `json:"disabled,omitempty"` // seat ids left out of the map (pillars, aisles)
}

const maxLayoutSide = 702 // rows A..ZZ

// Seats expands the layout into seats in row-major order.
func (l Layout) Seats() ([]model.Seat, error) {
	if l.Rows <= 0 || l.Cols <= 0 {
		return nil, invalid("rows and cols must be positive")
	}
	if l.Rows > maxLayoutSide || l.Cols > maxLayoutSide {
		return nil, invalid("layout larger than %dx%d", maxLayoutSide, maxLayoutSide)
	}
	kind := make(map[string]model.SeatType)
	for _, r := range l.VIPRows {
		kind[NormalizeRowLabel(r)] = model.SeatVIP
	}
	for _, r := range l.CoupleRows {
		kind[NormalizeRowLabel(r)] = model.SeatCouple
	}
	skip := make(map[string]struct{}, len(l.Disabled))
	for _, id := range l.Disabled {
		skip[strings.ToUpper(strings.TrimSpace(id))] = struct{}{}
	}

	out := make([]model.Seat, 0, l.Rows*l.Cols)
	for i := 0; i < l.Rows; i++ {
		row := RowLabel(i)
		typ, ok := kind[row]
		if !ok {
			typ = model.SeatStandard
		}
		price := l.BasePriceCents
		switch {
		case typ == model.SeatVIP && l.VIPPriceCents > 0:
			price = l.VIPPriceCents
		case typ == model.SeatCouple && l.CouplePriceCents > 0:
			price = l.CouplePriceCents
		}
		for col := 1; col <= l.Cols; col++ {
			id := SeatID(row, col)
			if _, off := skip[id]; off {
				continue
			}
			out = append(out, model.Seat{
				ID:             id,
				Row:            row,
				Col:            uint32(col),
				Type:           typ,
				BasePriceCents: price,
			})
		}
	}
	if len(out) == 0 {
		return nil, invalid("layout disables every seat")
	}
	return out, nil
}

// SeatID joins a row label and a 1-based column.
func SeatID(row string, col int) string {
	return row + strconv.Itoa(col)
}

// RowLabel converts a zero-based row index to its label: 0 → A,
// 25 → Z, 26 → AA.
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// NormalizeRowLabel keeps only ASCII letters, upper-cased.
func NormalizeRowLabel(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 32)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseSeatID splits an id such as AA12 into its row label and column.
func ParseSeatID(id string) (string, int, bool) {
	id = strings.ToUpper(strings.TrimSpace(id))
	i := 0
	for i < len(id) && id[i] >= 'A' && id[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(id) {
		return "", 0, false
	}
	col, err := strconv.Atoi(id[i:])
	if err != nil || col <= 0 {
		return "", 0, false
	}
	return id[:i], col, true
}

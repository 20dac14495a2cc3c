package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beesaferoot/kost-manager/internal/models"
)

const dateLayout = "2006-01-02"

// formatRupiah renders 1500000 as "Rp 1.500.000".
func formatRupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + "Rp " + b.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

func parseDate(flag, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, expected YYYY-MM-DD", flag, value)
	}
	return t, nil
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func roomNumber(rooms map[string]models.Room, id *string) string {
	if id == nil || *id == "" {
		return "-"
	}
	if r, ok := rooms[*id]; ok {
		return r.Number
	}
	return *id
}

func tenantName(tenants map[string]models.Tenant, id *string) string {
	if id == nil || *id == "" {
		return "-"
	}
	if t, ok := tenants[*id]; ok {
		return t.Name
	}
	return *id
}

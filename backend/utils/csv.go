package utils

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// CSVFilename builds an attachment name embedding the current date,
// e.g. "my_learning_data_2026-09-01.csv".
func CSVFilename(prefix string) string {
	return fmt.Sprintf("%s_%s.csv", prefix, time.Now().UTC().Format("2006-01-02"))
}

// SetCSVAttachment marks the response as a downloadable CSV file.
func SetCSVAttachment(c *fiber.Ctx, prefix string) {
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", CSVFilename(prefix)))
}

// CSVString renders a value as a CSV cell, turning NULL-ish values into the
// empty string. Quoting itself is left to encoding/csv.
func CSVString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *uint:
		if val == nil {
			return ""
		}
		return strconv.FormatUint(uint64(*val), 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

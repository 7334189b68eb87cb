package tool

import (
	"context"
	"fmt"
	"time"
)

const ToolCurrentDateTime = "current_date_time"

var spanishWeekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

type DateTimeInput struct{}

func currentDateTime(now func() time.Time) func(context.Context, DateTimeInput) (string, error) {
	return func(_ context.Context, _ DateTimeInput) (string, error) {
		t := now()
		return fmt.Sprintf("Hoy es %s, y la fecha y hora actual es: %s",
			spanishWeekdays[t.Weekday()], t.Format("2006-01-02 15:04:05")), nil
	}
}

package marketdata

import (
	"time"

	"github.com/bobmcallan/tally/internal/models"
)

// PriceDate resolves the calendar date to request from a provider. "Today"
// is judged in the market's timezone; requests for today or later are lagged
// by the provider's DateLag, and providers that do not trade weekends roll
// Saturday and Sunday back to Friday. The result is midnight UTC.
func PriceDate(cfg models.ProviderConfig, market models.Market, date, now time.Time) time.Time {
	day := calendarDay(date)
	today := calendarDay(now.In(market.Location()))

	if !day.Before(today) {
		day = today.AddDate(0, 0, -cfg.DateLag)
	}

	if !cfg.TradesWeekends {
		switch day.Weekday() {
		case time.Saturday:
			day = day.AddDate(0, 0, -1)
		case time.Sunday:
			day = day.AddDate(0, 0, -2)
		}
	}
	return day
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

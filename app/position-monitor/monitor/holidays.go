package monitor

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/gb"
)

//transitHolidayCalendar holds the bank holidays that change service patterns, used to flag observed leg times
type transitHolidayCalendar struct {
	calendar *cal.BusinessCalendar
}

//makeTransitHolidayCalendar builds transitHolidayCalendar with England and Wales bank holidays
func makeTransitHolidayCalendar() *transitHolidayCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(gb.Holidays...)
	return &transitHolidayCalendar{calendar: calendar}
}

//isHoliday returns true if at is on an observed bank holiday
func (t *transitHolidayCalendar) isHoliday(at time.Time) bool {
	_, observed, _ := t.calendar.IsHoliday(at)
	return observed
}

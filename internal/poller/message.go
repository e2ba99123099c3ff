package poller

import (
	"fmt"
	"strings"

	"gymwatch/internal/watch"
)

const (
	headerDateLayout = "Monday 02 January"
	slotTimeLayout   = "15:04"
)

// ComposeMessage renders the notification for slots found at venue. The
// header uses the first slot's date. No slots means no message.
func ComposeMessage(venue string, slots []watch.Slot) string {
	if len(slots) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Slot(s) available at %s on %s", venue, slots[0].Start.Format(headerDateLayout))
	for _, s := range slots {
		fmt.Fprintf(&b, "\n -> %s - %s", s.Start.Format(slotTimeLayout), s.End.Format(slotTimeLayout))
		if s.SpotsAvailable != nil {
			fmt.Fprintf(&b, ": %d spot(s)", *s.SpotsAvailable)
		}
	}
	return b.String()
}

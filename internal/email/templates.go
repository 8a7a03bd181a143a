package email

import (
	"fmt"
	"strings"

	"github.com/example/hotel-distribution/internal/domain/channel"
	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

// BuildExclusivityAlertBody builds the HTML body for a mode violation alert
func BuildExclusivityAlertBody(report *channel.AuditReport) string {
	var rows strings.Builder
	for _, v := range report.Violations {
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 10px; border-bottom: 1px solid #eee; font-family: monospace;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">%s</td>
			</tr>`,
			v.ChannelCode, v.Mode, v.Detail,
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 700px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 20px; color: #c0392b;">Distribution mode violations</h1>
	<p>The exclusivity audit at %s found %d violation(s) across %d channel(s) of hotel <strong>%s</strong>.</p>
	<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr style="background: #f8f9fa;">
				<th style="padding: 10px; text-align: left;">Channel</th>
				<th style="padding: 10px; text-align: left;">Mode</th>
				<th style="padding: 10px; text-align: left;">Detail</th>
			</tr>
		</thead>
		<tbody>%s</tbody>
	</table>
	<p style="font-size: 13px; color: #666;">Violations are detected, not blocked. Review the channel configuration before the next audit run.</p>
</body>
</html>`,
		report.RanAt.Format("2006-01-02 15:04 MST"), len(report.Violations), report.Checked, report.HotelID, rows.String())
}

// BuildDeadLetterAlertBody builds the HTML body for a dead-letter alert
func BuildDeadLetterAlertBody(hotelID string, events []store.ARIEvent) string {
	var rows strings.Builder
	for _, ev := range events {
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 10px; border-bottom: 1px solid #eee; font-family: monospace;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">%s</td>
			</tr>`,
			ev.ID, ev.Type, ev.RoomTypeCode, ev.Error,
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 700px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 20px; color: #c0392b;">Dead-lettered ARI events</h1>
	<p>%d event(s) for hotel <strong>%s</strong> could not be applied and need manual review.</p>
	<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
		<thead>
			<tr style="background: #f8f9fa;">
				<th style="padding: 10px; text-align: left;">Event</th>
				<th style="padding: 10px; text-align: left;">Type</th>
				<th style="padding: 10px; text-align: left;">Room type</th>
				<th style="padding: 10px; text-align: left;">Reason</th>
			</tr>
		</thead>
		<tbody>%s</tbody>
	</table>
</body>
</html>`,
		len(events), hotelID, rows.String())
}

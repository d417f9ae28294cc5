package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"RateKeeper/internal/calculator"
	"RateKeeper/internal/model"
	"RateKeeper/internal/ratemodel"

	"github.com/holiman/uint256"
)

// Percent renders a ray as a percentage with four decimals.
func Percent(v *uint256.Int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f%%", calculator.ToFloat(v)*100)
}

// Messages are sent in HTML mode; free text goes through html.EscapeString.

// FormatCommitReport formats a successful commit.
func FormatCommitReport(asset string, run *model.UpkeepRun) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("✅ <b>RateKeeper commit</b> | %s | %s\n\n", html.EscapeString(asset), run.StartedAt.UTC().Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Window average: %s\n", Percent(run.WindowAverage)))
	b.WriteString(fmt.Sprintf("Sampled utilization: %s (slot %d)\n", Percent(run.Utilization), run.Slot))
	b.WriteString(fmt.Sprintf("Slope1: %s → %s", Percent(run.PreviousSlope1), Percent(run.ProposedSlope1)))
	if run.PreviousSlope1 != nil && run.ProposedSlope1 != nil {
		switch run.ProposedSlope1.Cmp(run.PreviousSlope1) {
		case 1:
			b.WriteString(" 📈")
		case -1:
			b.WriteString(" 📉")
		}
	}
	b.WriteString(fmt.Sprintf("\nCounter: %d\n", run.Counter))
	return b.String()
}

// FormatFailure formats a failed commit attempt.
func FormatFailure(asset string, run *model.UpkeepRun) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("❌ <b>RateKeeper commit failed</b> | %s\n\n", html.EscapeString(asset)))
	b.WriteString(fmt.Sprintf("Error: %s\n", html.EscapeString(run.Error)))
	if run.ProposedSlope1 != nil {
		b.WriteString(fmt.Sprintf("Proposed slope1: %s\n", Percent(run.ProposedSlope1)))
	}
	b.WriteString("The next check will retry.")
	return b.String()
}

// FormatSaveFailure warns that a commit went through but could not be persisted.
// A restart before the next successful save would restore the previous state.
func FormatSaveFailure(asset string, run *model.UpkeepRun, err error) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚠️ <b>RateKeeper state not saved</b> | %s\n\n", html.EscapeString(asset)))
	b.WriteString(fmt.Sprintf("Commit #%d installed slope1 %s but the state file write failed.\n", run.Counter, Percent(run.ProposedSlope1)))
	b.WriteString(fmt.Sprintf("Error: %s\n", html.EscapeString(err.Error())))
	b.WriteString("Do not restart the keeper until the state file is writable.")
	return b.String()
}

// FormatError formats a one-line error reply.
func FormatError(what string, err error) string {
	return fmt.Sprintf("❌ %s: %s", what, html.EscapeString(err.Error()))
}

// FormatStatus formats the controller and model state.
func FormatStatus(asset string, st model.UpkeepStatus, p model.RateParams) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📦 <b>RateKeeper status</b> | %s\n\n", html.EscapeString(asset)))
	b.WriteString(fmt.Sprintf("Slope1: %s\n", Percent(p.VariableRateSlope1)))
	b.WriteString(fmt.Sprintf("Optimal usage: %s (ε %s)\n", Percent(p.OptimalUsageRatio), Percent(p.Epsilon)))
	b.WriteString(fmt.Sprintf("mPlus / mMinus: %d / %d bps\n", p.MPlus, p.MMinus))
	b.WriteString(fmt.Sprintf("Window average: %s over %d samples\n", Percent(st.WindowAverage), st.WindowSize))
	b.WriteString(fmt.Sprintf("Proposed slope1: %s\n", Percent(st.ProposedSlope1)))
	b.WriteString(fmt.Sprintf("Counter: %d\n", st.Counter))
	b.WriteString(fmt.Sprintf("Last commit: %s\n", st.LastCommitTime.UTC().Format("2006-01-02 15:04")))
	if st.Due {
		b.WriteString("Next commit: due now\n")
	} else {
		b.WriteString(fmt.Sprintf("Next commit: %s\n", st.NextDueTime.UTC().Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatHistory lists recent runs, newest first.
func FormatHistory(runs []model.UpkeepRun) string {
	if len(runs) == 0 {
		return "No upkeep runs recorded yet."
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Recent upkeep runs</b>\n\n")
	for _, r := range runs {
		ts := r.StartedAt.UTC().Format("01-02 15:04")
		switch r.Outcome {
		case model.OutcomeCommitted:
			b.WriteString(fmt.Sprintf("%s #%d util %s slope1 %s\n", ts, r.Counter, Percent(r.Utilization), Percent(r.ProposedSlope1)))
		case model.OutcomeFailed:
			b.WriteString(fmt.Sprintf("%s failed: %s\n", ts, html.EscapeString(r.Error)))
		default:
			b.WriteString(fmt.Sprintf("%s %s\n", ts, r.Outcome))
		}
	}
	return b.String()
}

// FormatRates formats the current interest rates of the reserve.
func FormatRates(asset string, snap *model.ReserveSnapshot, rates ratemodel.InterestRates) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💹 <b>Interest rates</b> | %s | %s\n\n", html.EscapeString(asset), snap.FetchedAt.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Utilization: %s\n", Percent(snap.Utilization)))
	b.WriteString(fmt.Sprintf("Variable borrow: %s\n", Percent(rates.VariableBorrowRate)))
	b.WriteString(fmt.Sprintf("Stable borrow: %s\n", Percent(rates.StableBorrowRate)))
	b.WriteString(fmt.Sprintf("Supply: %s\n", Percent(rates.LiquidityRate)))
	return b.String()
}

// HelpText lists the supported commands.
const HelpText = "Available commands:\n• /status\n• /history\n• /rates\n• /check"

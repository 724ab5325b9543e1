package session

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// PrintReport writes a formatted session assessment to w.
func PrintReport(w io.Writer, r *Report) {
	if r == nil {
		fmt.Fprintln(w, "No report data available")
		return
	}

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "                    WORKOUT VIDEO ASSESSMENT")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Session:        %s\n", r.SessionID)
	fmt.Fprintf(w, "Exercise:       %s\n", r.Exercise)
	if r.Athlete != "" {
		fmt.Fprintf(w, "Athlete:        %s\n", r.Athlete)
	}
	if !r.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Analyzed:       %s\n", r.CreatedAt.Format(time.RFC3339))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w, "PERFORMANCE")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w)
	printPerformance(w, &r.Performance)
	fmt.Fprintln(w)

	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w, "AUTHENTICITY")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintln(w)

	sec := &r.Security
	fmt.Fprintf(w, "Risk Score:     %.1f (%s)\n", sec.Risk.RiskScore, sec.Risk.Level)
	fmt.Fprintf(w, "Authenticity:   %s\n", sec.Risk.Authenticity)
	fmt.Fprintf(w, "Identity:       %s\n", identityLine(r))
	fmt.Fprintf(w, "Frames:         %d processed, %d valid\n",
		sec.FramesProcessed, sec.ValidFrames)

	if sec.FlagSummary.Total > 0 {
		fmt.Fprintf(w, "Flags:          %d\n", sec.FlagSummary.Total)
		for i, f := range sec.Flags {
			fmt.Fprintf(w, "  %d. [%s] %s at %.2fs\n", i+1, f.Severity, f.Type, f.Timestamp)
		}
	} else {
		fmt.Fprintln(w, "Flags:          none")
	}
	for _, rec := range sec.Risk.Recommendations {
		fmt.Fprintf(w, "  -> %s\n", rec)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "VERDICT: %s (confidence %.1f%%)\n",
		strings.ToUpper(string(r.Summary.FinalValidity)), r.Summary.AuthenticityConfidence)
	fmt.Fprintf(w, "%s\n", r.Summary.Recommendation)
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

func printPerformance(w io.Writer, p *Performance) {
	switch {
	case p.VerticalJumps != nil:
		fmt.Fprintf(w, "Jumps:          %d\n", p.VerticalJumps.Count)
		for _, j := range p.VerticalJumps.Jumps {
			fmt.Fprintf(w, "  %d. height %.1f cm, flight %.2fs\n",
				j.Number, j.HeightCM, j.FlightTimeSec)
		}
		if p.VerticalJumps.Count > 0 {
			fmt.Fprintf(w, "Average Height: %.1f cm\n", p.VerticalJumps.AverageHeightCM)
		}
	case p.LongJump != nil:
		fmt.Fprintf(w, "Distance:       %.1f cm\n", p.LongJump.DistanceCM)
		fmt.Fprintf(w, "Flight Time:    %.2fs\n", p.LongJump.FlightTimeSec)
	default:
		fmt.Fprintf(w, "Repetitions:    %d\n", p.RepCount)
		fmt.Fprintf(w, "Form Score:     %.0f\n", p.FormScore)
		if len(p.RepTimestamps) > 0 {
			parts := make([]string, len(p.RepTimestamps))
			for i, t := range p.RepTimestamps {
				parts[i] = fmt.Sprintf("%.1fs", t)
			}
			fmt.Fprintf(w, "Rep Times:      %s\n", strings.Join(parts, ", "))
		}
	}
}

func identityLine(r *Report) string {
	face := r.Security.Face
	if face.Error != "" {
		return "unavailable (" + face.Error + ")"
	}
	if face.Verified {
		return fmt.Sprintf("verified (%.1f%% confidence, %d/%d matches)",
			face.Confidence, face.Successful, face.Total)
	}
	return fmt.Sprintf("not verified (%.1f%% confidence, %d/%d matches)",
		face.Confidence, face.Successful, face.Total)
}

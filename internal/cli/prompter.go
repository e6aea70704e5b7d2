package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/recmatch/recmatch/internal/engine"
	"github.com/recmatch/recmatch/internal/match"
	"github.com/recmatch/recmatch/internal/model"
)

// Prompter implements engine.Prompter over a terminal: synchronous, blocking
// menus for the few/many/zero branches.
type Prompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewPrompter creates a prompter over the given reader and writer, defaulting
// to stdin/stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{reader: bufio.NewReader(reader), writer: writer}
}

// PickCandidate shows a small candidate list and asks for a choice.
func (p *Prompter) PickCandidate(ctx context.Context, s *match.Session, candidates []model.BankFeedTransaction) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fmt.Fprintln(p.writer, RenderBox("Multiple candidates", p.describeTarget(s)))
	for i, cand := range candidates {
		fmt.Fprintf(p.writer, "  [%d] %s  %s  %s\n",
			i+1,
			cand.Date().Format("2006-01-02"),
			model.Net(cand).StringFixed(2),
			SubtleStyle.Render(cand.Payee()))
	}
	fmt.Fprintln(p.writer, "  [s] leave unresolved")

	for {
		answer, err := p.readLine("Candidate number")
		if err != nil {
			return 0, err
		}
		if answer == "s" {
			return -1, nil
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(candidates) {
			return n - 1, nil
		}
		fmt.Fprintln(p.writer, WarningStyle.Render("Enter a listed number or s."))
	}
}

// ResolveZeroMatches asks the operator how to proceed when nothing matched.
func (p *Prompter) ResolveZeroMatches(ctx context.Context, s *match.Session) (engine.Decision, error) {
	if err := ctx.Err(); err != nil {
		return engine.Decision{}, err
	}

	swappable := match.CanSwapDayMonth(s.SearchDate())

	fmt.Fprintln(p.writer, RenderBox("No matching bank transaction", p.describeTarget(s)))
	fmt.Fprintln(p.writer, "  [c] alternate-currency withdrawal (estimate conversion ratio)")
	fmt.Fprintln(p.writer, "  [r] correct the receipt date and retry")
	fmt.Fprintln(p.writer, "  [d] widen the date margin")
	fmt.Fprintln(p.writer, "  [a] widen the amount margin")
	if swappable {
		fmt.Fprintln(p.writer, "  [f] force the day/month swap")
	}
	fmt.Fprintln(p.writer, "  [s] leave unresolved")

	for {
		answer, err := p.readLine("Choice")
		if err != nil {
			return engine.Decision{}, err
		}
		switch answer {
		case "c":
			ratio, err := p.readDecimal("Estimated conversion ratio")
			if err != nil {
				return engine.Decision{}, err
			}
			return engine.Decision{Kind: engine.DecisionCurrencyEstimate, Ratio: ratio}, nil
		case "r":
			return p.reopenDecision(s)
		case "d":
			days, err := p.readInt(fmt.Sprintf("New date margin in days (current %d)", s.Margins().DateDays))
			if err != nil {
				return engine.Decision{}, err
			}
			return engine.Decision{Kind: engine.DecisionWidenDateMargin, Days: days}, nil
		case "a":
			fraction, err := p.readDecimal(fmt.Sprintf("New amount margin fraction (current %s)", s.Margins().AmountFraction))
			if err != nil {
				return engine.Decision{}, err
			}
			return engine.Decision{Kind: engine.DecisionWidenAmountMargin, Fraction: fraction}, nil
		case "f":
			if swappable {
				return engine.Decision{Kind: engine.DecisionForceSwap}, nil
			}
			fmt.Fprintln(p.writer, WarningStyle.Render("The date is not day/month swappable."))
		case "s":
			return engine.Decision{Kind: engine.DecisionDecline}, nil
		default:
			fmt.Fprintln(p.writer, WarningStyle.Render("Enter one of the listed choices."))
		}
	}
}

// NarrowMargins asks for tighter margins when the candidate list is too
// large to enumerate.
func (p *Prompter) NarrowMargins(ctx context.Context, s *match.Session, count int) (engine.MarginNarrowing, bool, error) {
	if err := ctx.Err(); err != nil {
		return engine.MarginNarrowing{}, false, err
	}

	fmt.Fprintf(p.writer, "%s\n", WarningStyle.Render(
		fmt.Sprintf("%d candidates match. Narrow the margins to continue, or leave unresolved.", count)))
	fmt.Fprintln(p.writer, p.describeTarget(s))

	answer, err := p.readLine("Narrow margins? [y/n]")
	if err != nil {
		return engine.MarginNarrowing{}, false, err
	}
	if answer != "y" {
		return engine.MarginNarrowing{}, false, nil
	}

	days, err := p.readInt(fmt.Sprintf("Date margin in days (current %d)", s.Margins().DateDays))
	if err != nil {
		return engine.MarginNarrowing{}, false, err
	}
	fraction, err := p.readDecimal(fmt.Sprintf("Amount margin fraction (current %s)", s.Margins().AmountFraction))
	if err != nil {
		return engine.MarginNarrowing{}, false, err
	}
	return engine.MarginNarrowing{Days: days, Fraction: fraction}, true, nil
}

// reopenDecision collects a corrected receipt date. The correction surface of
// the terminal prompter is the date; deeper edits go back through the
// labeling tool.
func (p *Prompter) reopenDecision(s *match.Session) (engine.Decision, error) {
	date, err := p.readDate("Corrected receipt date (YYYY-MM-DD)")
	if err != nil {
		return engine.Decision{}, err
	}
	corrected := s.Receipt().WithDate(date)
	leg := s.Leg()
	return engine.Decision{
		Kind:    engine.DecisionReopenReceipt,
		Receipt: &corrected,
		Leg:     &leg,
	}, nil
}

func (p *Prompter) describeTarget(s *match.Session) string {
	receipt := s.Receipt()
	leg := s.Leg()
	return fmt.Sprintf("%s at %s\n%s on %s, net %s %s",
		receipt.Key[:min(12, len(receipt.Key))],
		receipt.Shop,
		s.SearchDate().Format("2006-01-02"),
		leg.Account().String(),
		s.TargetNet().StringFixed(2),
		leg.Currency())
}

func (p *Prompter) readLine(prompt string) (string, error) {
	fmt.Fprint(p.writer, FormatPrompt(prompt))
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read operator input: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

func (p *Prompter) readInt(prompt string) (int, error) {
	for {
		answer, err := p.readLine(prompt)
		if err != nil {
			return 0, err
		}
		if n, err := strconv.Atoi(answer); err == nil {
			return n, nil
		}
		fmt.Fprintln(p.writer, WarningStyle.Render("Enter a whole number."))
	}
}

func (p *Prompter) readDecimal(prompt string) (decimal.Decimal, error) {
	for {
		answer, err := p.readLine(prompt)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if d, err := decimal.NewFromString(answer); err == nil {
			return d, nil
		}
		fmt.Fprintln(p.writer, WarningStyle.Render("Enter a decimal number."))
	}
}

func (p *Prompter) readDate(prompt string) (time.Time, error) {
	for {
		answer, err := p.readLine(prompt)
		if err != nil {
			return time.Time{}, err
		}
		if d, err := time.Parse("2006-01-02", answer); err == nil {
			return d, nil
		}
		fmt.Fprintln(p.writer, WarningStyle.Render("Enter a date as YYYY-MM-DD."))
	}
}

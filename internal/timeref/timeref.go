// Package timeref parses column time expressions ("yesterday", "daysago(7)",
// "trailingsum(14, 7)", "since(2024-01-01)", ...) and resolves them against an
// anchor date into a model.TimeReference.
//
// Weeks start on Monday. Month arithmetic keeps the day of month and clamps it
// to the end of shorter months.
package timeref

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"compgrid/internal/model"
)

// ParseError reports an expression that does not match the grammar or that
// cannot be resolved against the anchor.
type ParseError struct {
	Expr   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid time expression %q: %s", e.Expr, e.Reason)
}

// Expr is a parsed, not yet anchored, time expression.
type Expr struct {
	Source string
	Name   string
	Args   []int
	Since  model.Date
}

var (
	exprRe   = regexp.MustCompile(`^([a-z]+)\s*(?:\((.*)\))?$`)
	digitsRe = regexp.MustCompile(`^[0-9]+$`)
)

// Argument caps per unit keep date arithmetic far from integer overflow.
const (
	maxDays   = 36500
	maxWeeks  = 5200
	maxMonths = 1200
)

type function struct {
	minArgs, maxArgs int
	limit            int
	defaults         []int
	validate         func(args []int) string
	resolve          func(anchor model.Date, args []int) model.TimeReference
}

var functions = map[string]function{
	"yesterday": {
		resolve: func(a model.Date, _ []int) model.TimeReference { return model.Point(a) },
	},
	"daysago": {
		minArgs: 1, maxArgs: 1, limit: maxDays,
		resolve: func(a model.Date, args []int) model.TimeReference { return model.Point(a.AddDays(-args[0])) },
	},
	"lastweek": {
		resolve: func(a model.Date, _ []int) model.TimeReference { return trailing(a, 7, 0, model.AggSum) },
	},
	"week": {
		minArgs: 1, maxArgs: 1, limit: maxWeeks,
		resolve: func(a model.Date, args []int) model.TimeReference {
			monday := a.Monday().AddDays(-7 * args[0])
			return model.Range(monday, monday.AddDays(6), model.AggSum)
		},
	},
	"trailingsum": {
		minArgs: 1, maxArgs: 2, limit: maxDays, defaults: []int{0, 0},
		validate: validateTrailing,
		resolve: func(a model.Date, args []int) model.TimeReference {
			return trailing(a, args[0], args[1], model.AggSum)
		},
	},
	"trailingavg": {
		minArgs: 1, maxArgs: 2, limit: maxDays, defaults: []int{0, 0},
		validate: validateTrailing,
		resolve: func(a model.Date, args []int) model.TimeReference {
			return trailing(a, args[0], args[1], model.AggAvg)
		},
	},
	"monthsago": {
		maxArgs: 1, limit: maxMonths, defaults: []int{1},
		resolve: monthsAgo,
	},
	"monthago": {
		maxArgs: 1, limit: maxMonths, defaults: []int{1},
		resolve: monthsAgo,
	},
	"month": {
		maxArgs: 1, limit: maxMonths, defaults: []int{1},
		resolve: func(a model.Date, args []int) model.TimeReference {
			first := a.FirstOfMonth().AddMonthsClamped(-args[0])
			return model.Range(first, first.LastOfMonth(), model.AggSum)
		},
	},
	"wtd": {
		maxArgs: 1, limit: maxWeeks, defaults: []int{0},
		resolve: func(a model.Date, args []int) model.TimeReference {
			shift := -7 * args[0]
			return model.Range(a.Monday().AddDays(shift), a.AddDays(shift), model.AggSum)
		},
	},
	"mtd": {
		maxArgs: 1, limit: maxMonths, defaults: []int{0},
		resolve: func(a model.Date, args []int) model.TimeReference { return monthToDate(a, args[0], model.AggSum) },
	},
	"mtdavg": {
		maxArgs: 1, limit: maxMonths, defaults: []int{0},
		resolve: func(a model.Date, args []int) model.TimeReference { return monthToDate(a, args[0], model.AggAvg) },
	},
	"weekdayweekend": {
		resolve: func(a model.Date, _ []int) model.TimeReference {
			// Saturday and Sunday report the whole weekend starting Friday.
			if iso := (int(a.Weekday()) + 6) % 7; iso >= 5 {
				return model.Range(a.AddDays(4-iso), a, model.AggSum)
			}
			return model.Point(a)
		},
	},
}

// Parse checks the syntax of an expression without anchoring it.
func Parse(src string) (Expr, error) {
	text := strings.TrimSpace(src)
	m := exprRe.FindStringSubmatch(text)
	if m == nil {
		return Expr{}, &ParseError{Expr: src, Reason: "unrecognized expression"}
	}
	name, rawArgs := m[1], m[2]
	hasParens := strings.HasSuffix(text, ")")

	if name == "since" {
		if !hasParens {
			return Expr{}, &ParseError{Expr: src, Reason: "since requires a date argument"}
		}
		d, err := model.ParseDate(strings.TrimSpace(rawArgs))
		if err != nil {
			return Expr{}, &ParseError{Expr: src, Reason: "since requires a valid YYYY-MM-DD date"}
		}
		return Expr{Source: src, Name: name, Since: d}, nil
	}

	fn, ok := functions[name]
	if !ok {
		return Expr{}, &ParseError{Expr: src, Reason: fmt.Sprintf("unknown function %q", name)}
	}

	if hasParens && fn.maxArgs == 0 {
		return Expr{}, &ParseError{Expr: src, Reason: fmt.Sprintf("%s takes no arguments", name)}
	}
	if hasParens && strings.TrimSpace(rawArgs) == "" {
		return Expr{}, &ParseError{Expr: src, Reason: "empty argument list"}
	}

	var args []int
	if hasParens {
		for _, part := range strings.Split(rawArgs, ",") {
			part = strings.TrimSpace(part)
			if !digitsRe.MatchString(part) {
				return Expr{}, &ParseError{Expr: src, Reason: fmt.Sprintf("argument %q is not a non-negative integer", part)}
			}
			n, err := strconv.Atoi(part)
			if err != nil || n > fn.limit {
				return Expr{}, &ParseError{Expr: src, Reason: fmt.Sprintf("argument %q is out of range", part)}
			}
			args = append(args, n)
		}
	}
	if len(args) < fn.minArgs {
		return Expr{}, &ParseError{Expr: src, Reason: fmt.Sprintf("%s needs at least %d argument(s)", name, fn.minArgs)}
	}
	if len(args) > fn.maxArgs {
		return Expr{}, &ParseError{Expr: src, Reason: fmt.Sprintf("%s takes at most %d argument(s)", name, fn.maxArgs)}
	}
	for i := len(args); i < len(fn.defaults); i++ {
		args = append(args, fn.defaults[i])
	}
	if fn.validate != nil {
		if reason := fn.validate(args); reason != "" {
			return Expr{}, &ParseError{Expr: src, Reason: reason}
		}
	}
	return Expr{Source: src, Name: name, Args: args}, nil
}

// Resolve anchors the expression.
func (e Expr) Resolve(anchor model.Date) (model.TimeReference, error) {
	if e.Name == "since" {
		if e.Since.After(anchor) {
			return model.TimeReference{}, &ParseError{
				Expr:   e.Source,
				Reason: fmt.Sprintf("date %s is after the anchor %s", e.Since, anchor),
			}
		}
		return model.Range(e.Since, anchor, model.AggSum), nil
	}
	fn, ok := functions[e.Name]
	if !ok {
		return model.TimeReference{}, &ParseError{Expr: e.Source, Reason: fmt.Sprintf("unknown function %q", e.Name)}
	}
	return fn.resolve(anchor, e.Args), nil
}

func (e Expr) String() string { return e.Source }

// Resolve parses and anchors expr in one step.
func Resolve(expr string, anchor model.Date) (model.TimeReference, error) {
	e, err := Parse(expr)
	if err != nil {
		return model.TimeReference{}, err
	}
	return e.Resolve(anchor)
}

func trailing(anchor model.Date, n, skip int, agg model.AggregationKind) model.TimeReference {
	return model.Range(anchor.AddDays(1-n), anchor.AddDays(-skip), agg)
}

func validateTrailing(args []int) string {
	if args[0] < 1 {
		return "window length must be at least 1"
	}
	if args[1] >= args[0] {
		return "excluded days must be fewer than the window length"
	}
	return ""
}

func monthsAgo(a model.Date, args []int) model.TimeReference {
	return model.Point(a.AddMonthsClamped(-args[0]))
}

func monthToDate(a model.Date, monthsBack int, agg model.AggregationKind) model.TimeReference {
	end := a.AddMonthsClamped(-monthsBack)
	return model.Range(end.FirstOfMonth(), end, agg)
}

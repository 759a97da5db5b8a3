// Package scpi implements the SCPI-style remote control dialect.
//
// Supported commands:
//
//	*IDN?                      application identity
//	*CLS                       clears error stack
//	[:]POSition?               get position
//	[:]CALibration[:STATe]?    get calibration
//	[:]MOVE[:STATe]?           is moving?
//	[:]MOVE:RELative dx,dy,dz  3-axis relative move
//	[:]MOVE:ABSolute x,y,z     3-axis absolute move
//	[:]MOVE:ABORT              abort a movement
//	[:]SYStem:ERRor[:NEXT]?    next error on stack
//	[:]SYStem:ERRor:COUNt?     size of error stack
//
// Commands are case insensitive (pos? equals POS?) and each keyword is
// written either in its short or its full form; intermediate spellings
// are rejected. The parser is stateless; all mutable state lives
// behind the dispatcher.
package scpi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hephy-dd/table-control/pkg/table"
	"github.com/hephy-dd/table-control/pkg/types"
)

// Handler turns SCPI request lines into dispatched commands and
// formats the responses. Responses are LF-terminated; requests may end
// in LF or CRLF.
type Handler struct {
	dispatcher *table.Dispatcher
}

func NewHandler(dispatcher *table.Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// HandleLine processes one request line. A nil return means no
// response bytes are written for this request.
func (h *Handler) HandleLine(line string) []byte {
	cmd, ok := Parse(line)
	if !ok {
		// Undefined command: retrievable via the error queries only.
		h.dispatcher.Dispatch(table.Command{Verb: table.VerbUnknown, Dialect: table.DialectSCPI})
		return nil
	}

	result := h.dispatcher.Dispatch(cmd)
	resp := format(cmd.Verb, result)
	if resp == "" {
		return nil
	}
	return []byte(resp + "\n")
}

func format(verb table.Verb, result table.Result) string {
	if result.Err != nil {
		// Action failures return nothing on the wire; the error is
		// retrievable via SYStem:ERRor?.
		return ""
	}
	switch verb {
	case table.VerbIdentify:
		return result.Identity
	case table.VerbQueryPosition:
		p := result.Position
		return fmt.Sprintf("%.6f %.6f %.6f", p.X, p.Y, p.Z)
	case table.VerbQueryCalibration:
		c := result.Calibration
		return fmt.Sprintf("%d %d %d", c.X, c.Y, c.Z)
	case table.VerbQueryMoveState:
		if result.MoveState != types.MoveIdle {
			return "1"
		}
		return "0"
	case table.VerbQueryErrorNext:
		return fmt.Sprintf("%d,%q", result.Entry.Code, result.Entry.Message)
	case table.VerbQueryErrorCount:
		return strconv.Itoa(result.Count)
	}
	return ""
}

// Parse converts one request line into an internal command. The second
// value is false for unknown or malformed command paths; argument
// arity and types are validated by the dispatcher.
func Parse(line string) (table.Command, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return table.Command{}, false
	}

	head := line
	var argPart string
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		head = line[:i]
		argPart = strings.TrimSpace(line[i+1:])
	}

	head = strings.ToLower(head)
	head = strings.TrimPrefix(head, ":")
	query := strings.HasSuffix(head, "?")
	head = strings.TrimSuffix(head, "?")

	verb, ok := matchPath(strings.Split(head, ":"), query)
	if !ok {
		return table.Command{}, false
	}

	cmd := table.Command{Verb: verb, Dialect: table.DialectSCPI}
	if argPart != "" {
		// Malformed numbers surface as an arity failure (101) in the
		// dispatcher, matching undefined-attribute handling.
		cmd.Args, _ = parseArgs(argPart)
	}
	return cmd, true
}

func matchPath(segments []string, query bool) (table.Verb, bool) {
	if len(segments) == 1 {
		switch segments[0] {
		case "*idn":
			if query {
				return table.VerbIdentify, true
			}
		case "*cls":
			if !query {
				return table.VerbClearErrors, true
			}
		}
	}

	switch {
	case query && matchKeyword(segments[0], "POSition") && optionalState(segments[1:]):
		return table.VerbQueryPosition, true

	case query && matchKeyword(segments[0], "CALibration") && optionalState(segments[1:]):
		return table.VerbQueryCalibration, true

	case matchKeyword(segments[0], "MOVE"):
		if query && optionalState(segments[1:]) {
			return table.VerbQueryMoveState, true
		}
		if !query && len(segments) == 2 {
			switch {
			case matchKeyword(segments[1], "RELative"):
				return table.VerbMoveRelative, true
			case matchKeyword(segments[1], "ABSolute"):
				return table.VerbMoveAbsolute, true
			case segments[1] == "abort":
				return table.VerbAbort, true
			}
		}

	// The system keyword additionally accepts the intermediate "syst"
	// form, kept for compatibility with existing clients.
	case (matchKeyword(segments[0], "SYStem") || segments[0] == "syst") && len(segments) >= 2 && matchKeyword(segments[1], "ERRor"):
		if !query {
			break
		}
		switch len(segments) {
		case 2:
			return table.VerbQueryErrorNext, true
		case 3:
			if matchKeyword(segments[2], "NEXT") {
				return table.VerbQueryErrorNext, true
			}
			if matchKeyword(segments[2], "COUNt") {
				return table.VerbQueryErrorCount, true
			}
		}
	}

	return table.VerbUnknown, false
}

func optionalState(rest []string) bool {
	switch len(rest) {
	case 0:
		return true
	case 1:
		return matchKeyword(rest[0], "STATe")
	}
	return false
}

// matchKeyword reports whether token matches a keyword spec such as
// "POSition": exactly the capitalized short form or the full keyword,
// nothing in between ("pos" and "position", not "posi").
func matchKeyword(token, spec string) bool {
	short := 0
	for short < len(spec) && spec[short] >= 'A' && spec[short] <= 'Z' {
		short++
	}
	full := strings.ToLower(spec)
	return token == full[:short] || token == full
}

func parseArgs(argPart string) ([]float64, error) {
	parts := strings.Split(argPart, ",")
	args := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// Package legacy implements the TCP dialect kept for compatibility
// with the LabView-era XYZ table automation software.
//
// Supported commands:
//
//	PO? - Get Table Position and Status
//	MA=x.xxx,x.xxx,x.xxx - Move absolute [X,Y,Z]
//	MR=x.xxx,x - Move relative [StepWidth,Axis]
//	??? - This command
//
// Commands are case sensitive. Every response is CRLF-terminated
// regardless of the terminator the client used; position fields always
// carry six fractional digits followed by the moving flag.
package legacy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hephy-dd/table-control/pkg/table"
	"github.com/hephy-dd/table-control/pkg/types"
)

const terminator = "\r\n"

var helpText = strings.Join([]string{
	"PO? - Get Table Position and Status",
	"MA=x.xxx,x.xxx,x.xxx - Move absolute [X,Y,Z]",
	"MR=x.xxx,x - Move relative [StepWidth,Axis]",
	"??? - This command",
}, terminator) + terminator

// Handler serves legacy request lines against the dispatcher.
type Handler struct {
	dispatcher *table.Dispatcher
}

func NewHandler(dispatcher *table.Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// HandleLine processes one request line. Unknown or malformed input
// yields a one-line error response; the connection stays open.
func (h *Handler) HandleLine(line string) []byte {
	message := strings.TrimSpace(line)

	switch {
	case message == "PO?":
		return h.position()

	case message == "???":
		return []byte(helpText)

	case strings.HasPrefix(message, "MR="):
		return h.moveRelative(message[len("MR="):])

	case strings.HasPrefix(message, "MA="):
		return h.moveAbsolute(message[len("MA="):])
	}

	return errLine(table.ErrInvalidCommand)
}

func (h *Handler) position() []byte {
	// Position and moving flag come from one snapshot so the rendered
	// fields are consistent.
	result := h.dispatcher.Dispatch(table.Command{
		Verb:    table.VerbQueryPositionState,
		Dialect: table.DialectLegacy,
	})

	pos := result.Position
	moving := 0
	if result.MoveState != types.MoveIdle {
		moving = 1
	}
	return []byte(fmt.Sprintf("%.6f,%.6f,%.6f,%d%s", pos.X, pos.Y, pos.Z, moving, terminator))
}

func (h *Handler) moveRelative(args string) []byte {
	parts := strings.Split(args, ",")
	if len(parts) != 2 {
		return errLine(table.ErrInvalidAttributes)
	}
	delta, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return errLine(table.ErrInvalidAttributes)
	}
	axis, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || !types.Axis(axis).Valid() {
		return errLine(table.ErrInvalidAttributes)
	}

	result := h.dispatcher.Dispatch(table.Command{
		Verb:    table.VerbMoveRelative,
		Dialect: table.DialectLegacy,
		Axis:    types.Axis(axis),
		Args:    []float64{delta},
	})
	if result.Err != nil {
		return errLine(result.Err)
	}
	return nil
}

func (h *Handler) moveAbsolute(args string) []byte {
	parts := strings.Split(args, ",")
	if len(parts) != 3 {
		return errLine(table.ErrInvalidAttributes)
	}
	target := make([]float64, 3)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return errLine(table.ErrInvalidAttributes)
		}
		target[i] = v
	}

	result := h.dispatcher.Dispatch(table.Command{
		Verb:    table.VerbMoveAbsolute,
		Dialect: table.DialectLegacy,
		Args:    target,
	})
	if result.Err != nil {
		return errLine(result.Err)
	}
	return nil
}

func errLine(err *table.Error) []byte {
	return []byte(fmt.Sprintf("ERR %d %s%s", err.Code, err.Message, terminator))
}

package service

import (
	"errors"

	"github.com/freeeve/minimalists/api/pkg/conquest"
)

// Command types a human seat may issue.
const (
	CommandSend      = "send"
	CommandSendExact = "send_exact"
	CommandUpgrade   = "upgrade"
	CommandConvert   = "convert"
)

// defaultSendFraction applies when a send command omits the fraction.
const defaultSendFraction = 0.5

var (
	ErrNotOwner           = errors.New("construct is not owned by this faction")
	ErrMatchNotRunning    = errors.New("match is not running")
	ErrUnknownCommand     = errors.New("unknown command type")
	ErrMissingConvertType = errors.New("convert_to is required")
)

// Command is one player instruction against a construct.
type Command struct {
	Type      string  `json:"type" validate:"required,oneof=send send_exact upgrade convert"`
	Source    string  `json:"source" validate:"required"`
	Target    string  `json:"target" validate:"required_if=Type send,required_if=Type send_exact"`
	Fraction  float64 `json:"fraction" validate:"gte=0,lte=1"`
	Count     int     `json:"count" validate:"gte=0"`
	ConvertTo string  `json:"convert_to" validate:"required_if=Type convert"`
}

// CommandResult is the reply to a submitted command. Rejections are not
// errors; Reason carries the engine's explanation.
type CommandResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// apply runs the command for faction f. It must be called on the match's
// own goroutine.
func (c Command) apply(w *conquest.World, f conquest.FactionID) error {
	if w.Phase() != conquest.PhasePlaying {
		return ErrMatchNotRunning
	}
	src := w.Construct(conquest.ConstructID(c.Source))
	if src == nil {
		return conquest.ErrUnknownConstruct
	}
	if src.Owner() != f {
		return ErrNotOwner
	}

	switch c.Type {
	case CommandSend, CommandSendExact:
		dst := w.Construct(conquest.ConstructID(c.Target))
		if dst == nil {
			return conquest.ErrUnknownConstruct
		}
		if c.Type == CommandSendExact {
			return src.SendExact(dst, c.Count)
		}
		frac := c.Fraction
		if frac == 0 {
			frac = defaultSendFraction
		}
		return src.SendUnits(dst, frac)
	case CommandUpgrade:
		return src.Upgrade()
	case CommandConvert:
		if c.ConvertTo == "" {
			return ErrMissingConvertType
		}
		return src.Convert(c.ConvertTo)
	}
	return ErrUnknownCommand
}

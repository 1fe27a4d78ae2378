package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/session"
)

// maxFrameSize caps a single newline-delimited request frame (10MB).
const maxFrameSize = 10 << 20

// Pipe serves the protocol over a single byte stream, newline-delimited,
// one frame at a time. It is inherently single-stream: frames are handled
// synchronously in arrival order with no concurrent in-flight requests.
type Pipe struct {
	in       io.Reader
	out      io.Writer
	handler  *Handler
	registry *session.Registry
	logger   *common.Logger

	writeMu sync.Mutex
}

// NewPipe creates a pipe transport over the given streams
// (os.Stdin/os.Stdout in production).
func NewPipe(in io.Reader, out io.Writer, handler *Handler, registry *session.Registry, logger *common.Logger) *Pipe {
	return &Pipe{
		in:       in,
		out:      out,
		handler:  handler,
		registry: registry,
		logger:   logger,
	}
}

// Serve reads frames until EOF or context cancellation. The pipe's single
// anonymous session is registered for the duration so session accounting
// stays uniform across transports.
func (p *Pipe) Serve(ctx context.Context) error {
	sess := p.registry.Create(session.KindPipe)
	defer p.registry.Remove(sess.ID)

	p.logger.Info().Str("session_id", sess.ID).Msg("pipe transport started")

	scanner := bufio.NewScanner(p.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		resp := p.handler.Handle(ctx, line)
		if resp == nil {
			continue
		}
		if err := p.write(resp); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	p.logger.Info().Msg("pipe transport closed on EOF")
	return nil
}

func (p *Pipe) write(frame []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := p.out.Write(frame); err != nil {
		return err
	}
	_, err := p.out.Write([]byte{'\n'})
	return err
}

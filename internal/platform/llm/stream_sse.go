package llm

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// errStreamDone lets an onEvent callback stop the reader early, for example
// after the upstream "[DONE]" sentinel.
var errStreamDone = errors.New("stream done")

// streamSSE reads server-sent events from r and invokes onEvent once per
// complete event. Data may arrive split at arbitrary byte boundaries; the
// buffered reader reassembles lines before any parsing happens. Multi-line
// data fields are joined with newlines per the SSE framing rules.
func streamSSE(r io.Reader, onEvent func(data string) error) error {
	br := bufio.NewReader(r)
	var dataLines []string

	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		if onEvent == nil {
			return nil
		}
		return onEvent(data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if ferr := flush(); ferr != nil && !errors.Is(ferr, errStreamDone) {
					return ferr
				}
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		// Blank line ends the event.
		if line == "" {
			if err := flush(); err != nil {
				if errors.Is(err, errStreamDone) {
					return nil
				}
				return err
			}
			continue
		}

		// Comment line.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

package client

import (
	"bufio"
	"io"
	"strings"
)

type frame struct {
	id    string
	event string
	data  string
}

// frameReader splits a text/event-stream body into frames. Comment lines
// and unknown fields are skipped; multi-line data is joined with "\n".
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReaderSize(r, 16<<10)}
}

func (fr *frameReader) next() (frame, error) {
	var (
		f    frame
		data []string
	)

	for {
		line, err := fr.r.ReadString('\n')
		if err != nil {
			return frame{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if f.event == "" && len(data) == 0 {
				continue
			}
			f.data = strings.Join(data, "\n")
			return f, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "id":
			f.id = value
		case "event":
			f.event = value
		case "data":
			data = append(data, value)
		}
	}
}

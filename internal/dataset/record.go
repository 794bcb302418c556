package dataset

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChizhovVadim/weiqitrain/internal/domain"
)

const recordVersion = 1

// lines after the header line: side info, prob, aux prob, ownership, result, q values, scores
const recordTailLines = 7

// RecordReader pulls one game record from a stream.
// It returns io.EOF when the stream holds no further records.
// With skip the record is consumed but not decoded and the example is nil.
type RecordReader interface {
	ReadRecord(s *Stream, skip bool) (*domain.RawExample, error)
}

// TextRecordReader decodes the line oriented record format:
//
//	<version> <board_size> <num_planes>
//	<to_move> <komi> <rule> <wave>
//	num_planes lines of board_size^2 characters '0'/'1'
//	<board_size^2+1 probabilities>
//	<board_size^2+1 auxiliary probabilities>
//	<board_size^2 ownership values>
//	<result> <final_score>
//	<avg_q> <short_avg_q> <mid_avg_q> <long_avg_q>
//	<avg_score> <short_avg_score> <mid_avg_score> <long_avg_score>
type TextRecordReader struct{}

func (TextRecordReader) ReadRecord(s *Stream, skip bool) (*domain.RawExample, error) {
	var header, err = nextNonEmptyLine(s)
	if err != nil {
		return nil, err
	}
	var fields = strings.Fields(header)
	if len(fields) != 3 {
		return nil, fmt.Errorf("bad record header %q", header)
	}
	version, err := strconv.Atoi(fields[0])
	if err != nil || version != recordVersion {
		return nil, fmt.Errorf("unsupported record version %q", fields[0])
	}
	boardSize, err := strconv.Atoi(fields[1])
	if err != nil || boardSize <= 0 {
		return nil, fmt.Errorf("bad board size %q", fields[1])
	}
	numPlanes, err := strconv.Atoi(fields[2])
	if err != nil || numPlanes < 0 {
		return nil, fmt.Errorf("bad plane count %q", fields[2])
	}

	var lines = make([]string, recordTailLines+numPlanes)
	for i := range lines {
		lines[i], err = s.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("truncated record in %v: %w", s.Name, err)
		}
	}
	if skip {
		return nil, nil
	}
	return decodeRecord(boardSize, numPlanes, lines)
}

func nextNonEmptyLine(s *Stream) (string, error) {
	for {
		var line, err = s.ReadLine()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) != "" {
			return line, nil
		}
	}
}

func decodeRecord(boardSize, numPlanes int, lines []string) (*domain.RawExample, error) {
	var n = boardSize * boardSize
	var ex = &domain.RawExample{
		BoardSize: boardSize,
		Planes:    make([][]float32, numPlanes),
	}

	side, err := parseFloats(lines[0], 4)
	if err != nil {
		return nil, fmt.Errorf("side info: %w", err)
	}
	ex.ToMove = int(side[0])
	ex.Komi = side[1]
	ex.Rule = side[2]
	ex.Wave = side[3]

	for p := 0; p < numPlanes; p++ {
		var line = strings.TrimSpace(lines[1+p])
		if len(line) != n {
			return nil, fmt.Errorf("plane %v: want %v cells, got %v", p, n, len(line))
		}
		var plane = make([]float32, n)
		for i := 0; i < n; i++ {
			switch line[i] {
			case '0':
			case '1':
				plane[i] = 1
			default:
				return nil, fmt.Errorf("plane %v: bad cell %q", p, line[i])
			}
		}
		ex.Planes[p] = plane
	}

	var rest = lines[1+numPlanes:]
	if ex.Prob, err = parseFloats(rest[0], n+1); err != nil {
		return nil, fmt.Errorf("prob: %w", err)
	}
	if ex.AuxProb, err = parseFloats(rest[1], n+1); err != nil {
		return nil, fmt.Errorf("aux prob: %w", err)
	}
	if ex.Ownership, err = parseFloats(rest[2], n); err != nil {
		return nil, fmt.Errorf("ownership: %w", err)
	}

	result, err := parseFloats(rest[3], 2)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	ex.Result = int(result[0])
	if ex.Result < -1 || ex.Result > 1 {
		return nil, fmt.Errorf("result out of range: %v", ex.Result)
	}
	ex.FinalScore = result[1]

	q, err := parseFloats(rest[4], 4)
	if err != nil {
		return nil, fmt.Errorf("q values: %w", err)
	}
	ex.AvgQ, ex.ShortAvgQ, ex.MidAvgQ, ex.LongAvgQ = q[0], q[1], q[2], q[3]

	scores, err := parseFloats(rest[5], 4)
	if err != nil {
		return nil, fmt.Errorf("scores: %w", err)
	}
	ex.AvgScore, ex.ShortAvgScore, ex.MidAvgScore, ex.LongAvgScore = scores[0], scores[1], scores[2], scores[3]

	return ex, nil
}

func parseFloats(line string, want int) ([]float32, error) {
	var fields = strings.Fields(line)
	if len(fields) != want {
		return nil, fmt.Errorf("want %v values, got %v", want, len(fields))
	}
	var result = make([]float32, want)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, err
		}
		result[i] = float32(v)
	}
	return result, nil
}

// WriteRecord encodes ex in the format read by TextRecordReader.
func WriteRecord(w io.Writer, ex *domain.RawExample) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %d %d\n", recordVersion, ex.BoardSize, len(ex.Planes))
	fmt.Fprintf(&sb, "%d %g %g %g\n", ex.ToMove, ex.Komi, ex.Rule, ex.Wave)
	for _, plane := range ex.Planes {
		for _, v := range plane {
			if v != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		sb.WriteByte('\n')
	}
	writeFloats(&sb, ex.Prob)
	writeFloats(&sb, ex.AuxProb)
	writeFloats(&sb, ex.Ownership)
	fmt.Fprintf(&sb, "%d %g\n", ex.Result, ex.FinalScore)
	fmt.Fprintf(&sb, "%g %g %g %g\n", ex.AvgQ, ex.ShortAvgQ, ex.MidAvgQ, ex.LongAvgQ)
	fmt.Fprintf(&sb, "%g %g %g %g\n", ex.AvgScore, ex.ShortAvgScore, ex.MidAvgScore, ex.LongAvgScore)
	var _, err = io.WriteString(w, sb.String())
	return err
}

func writeFloats(sb *strings.Builder, data []float32) {
	for i, v := range data {
		if i != 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	sb.WriteByte('\n')
}

package dump

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	recordPrefix    = "record"
	mmapRecord      = "record mmap:"
	forkRecord      = "record fork:"
	unwindingRecord = "record unwinding_result:"
	callchainRecord = "record callchain:"

	// Chain type tags of the two callchain records following every
	// unwinding_result record, in dump order.
	ChainTypeOriginal = "ORIGINAL_OFFLINE"
	ChainTypeJoined   = "JOINED_OFFLINE"
)

// Keys every unwinding_result record must carry.
var requiredOutcomeKeys = []string{"time", "used_time", "stop_reason"}

var (
	mmapRE     = regexp.MustCompile(`pid\s+(\d+).+addr\s+0x(\w+).+len\s+0x(\w+)`)
	forkRE     = regexp.MustCompile(`pid\s+(\w+),\s+ppid\s+(\w+)`)
	ipSpRE     = regexp.MustCompile(`ip\s+0x(\w+),\s+sp\s+0x(\w+)$`)
	symbolRE   = regexp.MustCompile(`^(.+)\[\+(\w+)\]\)`)
	deletedSym = regexp.MustCompile(`\)\[\+\w+\]\)$`)
)

// Parser decodes the line-oriented debug dump of the profiler into typed
// events. Any structural violation is fatal: the analysis downstream must
// never run on unverified assumptions.
type Parser struct {
	*ParserOptions
}

func NewParser(opts ...ParserOption) *Parser {
	parser := &Parser{
		ParserOptions: NewParserOptions(),
	}
	for _, opt := range opts {
		opt(parser)
	}

	return parser
}

// Parse reads the whole dump and returns its events in trace order.
func (p *Parser) Parse(r io.Reader) ([]Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dump")
	}
	content := string(data)
	if !strings.Contains(content, "record callchain") || !strings.Contains(content, "record unwinding_result") {
		return nil, ErrNoDebugLog
	}

	lines := strings.Split(content, "\n")

	var events []Event
	i := 0
	for i < len(lines) {
		switch {
		case strings.HasPrefix(lines[i], mmapRecord):
			next, evt, err := p.parseMapRecord(lines, i+1)
			if err != nil {
				return nil, err
			}
			events = append(events, evt)
			i = next
		case strings.HasPrefix(lines[i], forkRecord):
			next, evt, err := p.parseForkRecord(lines, i+1)
			if err != nil {
				return nil, err
			}
			events = append(events, evt)
			i = next
		case strings.HasPrefix(lines[i], unwindingRecord):
			next, evt, err := p.parseSampleRecord(lines, i+1)
			if err != nil {
				return nil, err
			}
			events = append(events, evt)
			i = next
		default:
			i++
		}
	}

	p.logger.Debug().Int("events", len(events)).Msg("decoded dump records")

	return events, nil
}

func (p *Parser) parseMapRecord(lines []string, i int) (int, MapEvent, error) {
	var (
		pid         = -1
		start, size uint64
		haveAddr    bool
		filename    string
	)
	for i < len(lines) && !strings.HasPrefix(lines[i], recordPrefix) {
		switch {
		case strings.HasPrefix(lines[i], "  pid"):
			if m := mmapRE.FindStringSubmatch(lines[i]); m != nil {
				pid, _ = strconv.Atoi(m[1])
				start, _ = strconv.ParseUint(m[2], 16, 64)
				size, _ = strconv.ParseUint(m[3], 16, 64)
				haveAddr = true
			}
		case strings.HasPrefix(lines[i], "  pgoff"):
			if pos := strings.Index(lines[i], "filename"); pos >= 0 {
				filename = strings.TrimSpace(lines[i][pos+len("filename"):])
			}
		}
		i++
	}
	if pid < 0 || !haveAddr || filename == "" {
		return i, MapEvent{}, errors.Wrapf(ErrMalformedDump, "near line %d", i)
	}

	return i, MapEvent{Pid: pid, Start: start, End: start + size, Filename: filename}, nil
}

func (p *Parser) parseForkRecord(lines []string, i int) (int, ForkEvent, error) {
	pid, ppid := -1, -1
	for i < len(lines) && !strings.HasPrefix(lines[i], recordPrefix) {
		if strings.HasPrefix(lines[i], "  pid") {
			if m := forkRE.FindStringSubmatch(lines[i]); m != nil {
				if v, err := strconv.Atoi(m[1]); err == nil {
					pid = v
				}
				if v, err := strconv.Atoi(m[2]); err == nil {
					ppid = v
				}
			}
		}
		i++
	}
	if pid < 0 || ppid < 0 {
		return i, ForkEvent{}, errors.Wrapf(ErrMalformedDump, "near line %d", i)
	}

	return i, ForkEvent{Pid: pid, PPid: ppid}, nil
}

func (p *Parser) parseSampleRecord(lines []string, i int) (int, SampleEvent, error) {
	outcome := NewOutcome()
	for i < len(lines) && !strings.HasPrefix(lines[i], recordPrefix) {
		fields := strings.Fields(lines[i])
		if len(fields) == 2 {
			outcome.Set(fields[0], fields[1])
		}
		i++
	}
	for _, key := range requiredOutcomeKeys {
		if _, ok := outcome.Get(key); !ok {
			return i, SampleEvent{}, errors.Wrapf(ErrMalformedDump, "near line %d", i)
		}
	}

	i, original, err := p.parseCallChainRecord(lines, i, ChainTypeOriginal)
	if err != nil {
		return i, SampleEvent{}, err
	}
	i, joined, err := p.parseCallChainRecord(lines, i, ChainTypeJoined)
	if err != nil {
		return i, SampleEvent{}, err
	}

	return i, SampleEvent{
		Pid:      original.Pid,
		Tid:      original.Tid,
		Outcome:  outcome,
		Original: original,
		Joined:   joined,
	}, nil
}

func (p *Parser) parseCallChainRecord(lines []string, i int, chainType string) (int, RawChain, error) {
	if i == len(lines) || !strings.HasPrefix(lines[i], callchainRecord) {
		return i, RawChain{}, errors.Wrapf(ErrMalformedDump, "near line %d", i)
	}
	i++

	chain := RawChain{Pid: -1, Tid: -1}
	inCallchain := false
	for i < len(lines) && !strings.HasPrefix(lines[i], recordPrefix) {
		line := strings.TrimSpace(lines[i])
		fields := strings.Fields(line)
		if len(fields) == 0 {
			i++
			continue
		}
		switch {
		case fields[0] == "pid" && len(fields) == 2:
			if v, err := strconv.Atoi(fields[1]); err == nil {
				chain.Pid = v
			}
		case fields[0] == "tid" && len(fields) == 2:
			if v, err := strconv.Atoi(fields[1]); err == nil {
				chain.Tid = v
			}
		case fields[0] == "chain_type" && len(fields) == 2:
			if fields[1] != chainType {
				return i, RawChain{}, errors.Wrapf(ErrMalformedDump, "near line %d", i)
			}
		case fields[0] == "ip":
			if m := ipSpRE.FindStringSubmatch(line); m != nil {
				ip, _ := strconv.ParseUint(m[1], 16, 64)
				sp, _ := strconv.ParseUint(m[2], 16, 64)
				chain.IPs = append(chain.IPs, ip)
				chain.SPs = append(chain.SPs, sp)
			}
		case fields[0] == "callchain:":
			inCallchain = true
		case inCallchain:
			// A frame line looks like "func_name (/path/libfoo.so[+1a2b])".
			// Deleted mappings repeat the bracket suffix inside the symbol
			// name, e.g. "cache (deleted)[+346c] (/path/cache (deleted)[+346c])",
			// so the split point is the second to last parenthesis then.
			var breakPos int
			if deletedSym.MatchString(line) {
				breakPos = strings.LastIndex(line[:strings.LastIndex(line, "(")], "(")
			} else {
				breakPos = strings.LastIndex(line, "(")
			}
			if breakPos > 0 {
				if m := symbolRE.FindStringSubmatch(line[breakPos+1:]); m != nil {
					offset, _ := strconv.ParseUint(m[2], 16, 64)
					chain.Functions = append(chain.Functions, strings.TrimSpace(line[:breakPos]))
					chain.Filenames = append(chain.Filenames, m[1])
					chain.Offsets = append(chain.Offsets, offset)
				}
			}
		}
		i++
	}

	n := chain.Len()
	if chain.Pid < 0 || chain.Tid < 0 || n == 0 ||
		len(chain.SPs) != n || len(chain.Functions) != n ||
		len(chain.Filenames) != n || len(chain.Offsets) != n {
		return i, RawChain{}, errors.Wrapf(ErrMalformedDump, "near line %d", i)
	}

	return i, chain, nil
}

package dump

import (
	log "github.com/rs/zerolog"
)

type ParserOptions struct {
	logger log.Logger
}

type ParserOption func(*Parser)

func NewParserOptions() *ParserOptions {
	return &ParserOptions{
		logger: log.Nop(),
	}
}

func WithParserLogger(logger log.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

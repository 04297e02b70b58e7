package potlai

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Chat framing overhead used by the usage estimate.
const (
	tokensPerMessage = 4
	replyPriming     = 3
	fallbackEncoding = "cl100k_base"
)

// Tokenizer counts tokens the way the target model does.
type Tokenizer interface {
	Count(text string) int
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// NewTiktokenTokenizer returns the BPE tokenizer of model, falling back to
// cl100k_base for models tiktoken does not know.
func NewTiktokenTokenizer(model string) (Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("loading tokenizer for %s: %w", model, err)
		}
	}
	return tiktokenTokenizer{enc: enc}, nil
}

// estimateMessages counts a system and a user message plus reply priming.
func estimateMessages(tok Tokenizer, system, user string) int {
	n := replyPriming
	for _, m := range [][2]string{{"system", system}, {"user", user}} {
		n += tokensPerMessage + tok.Count(m[0]) + tok.Count(m[1])
	}
	return n
}

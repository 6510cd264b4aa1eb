package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"jobmatchly/internal/domain/ports/adapter"
)

// Chat framing overhead per the OpenAI token counting guide.
const (
	tokensPerMessage = 3
	tokensPerReply   = 3
)

var encodings sync.Map // model -> *tiktoken.Tiktoken

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	if enc, ok := encodings.Load(model); ok {
		return enc.(*tiktoken.Tiktoken), nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// unknown or non-OpenAI model names get the common encoding
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return nil, err
		}
	}
	encodings.Store(model, enc)
	return enc, nil
}

// CountChatTokens estimates the prompt size of a chat request locally.
func CountChatTokens(model string, messages []adapter.Message) (int, error) {
	enc, err := encodingFor(model)
	if err != nil {
		return 0, err
	}
	n := tokensPerReply
	for _, m := range messages {
		n += tokensPerMessage
		n += len(enc.Encode(m.Role, nil, nil))
		n += len(enc.Encode(m.Content, nil, nil))
	}
	return n, nil
}

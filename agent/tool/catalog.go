package tool

import (
	"fmt"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	contractx "github.com/JRealValdes/jarvis/agent/contract"
)

type Options struct {
	// Transcriber enables speech_to_text when set.
	Transcriber Transcriber
	Now         func() time.Time
}

// Local builds the tools every agent gets.
func Local(opts Options) ([]einotool.BaseTool, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	calc, err := utils.InferTool(ToolCalculate,
		"Evaluate an arithmetic expression. Only use it when the request needs a calculation.",
		calculate)
	if err != nil {
		return nil, fmt.Errorf("%w: build %s tool: %v", contractx.ErrValidation, ToolCalculate, err)
	}

	clock, err := utils.InferTool(ToolCurrentDateTime,
		"Return the current date and time with second precision, including the day of the week.",
		currentDateTime(now))
	if err != nil {
		return nil, fmt.Errorf("%w: build %s tool: %v", contractx.ErrValidation, ToolCurrentDateTime, err)
	}

	tools := []einotool.BaseTool{calc, clock}

	if opts.Transcriber != nil {
		speech, err := utils.InferTool(ToolSpeechToText,
			"Transcribe an audio file to text.",
			speechToText(opts.Transcriber))
		if err != nil {
			return nil, fmt.Errorf("%w: build %s tool: %v", contractx.ErrValidation, ToolSpeechToText, err)
		}
		tools = append(tools, speech)
	}

	return tools, nil
}

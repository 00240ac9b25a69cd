package hierarchy

import (
	"fmt"
	"strings"
)

// ContractDefinition is the parsed form of a Subtask's contextScope: a
// literal "CONTRACT DEFINITION:" header followed by four numbered
// sections, in order.
type ContractDefinition struct {
	ResearchNote string
	Input        string
	Logic        string
	Output       string
}

const contractPrefix = "CONTRACT DEFINITION:"

var contractSections = []string{
	"1. RESEARCH NOTE:",
	"2. INPUT:",
	"3. LOGIC:",
	"4. OUTPUT:",
}

// ParseContractDefinition parses a Subtask's contextScope string. It
// requires the literal prefix "CONTRACT DEFINITION:" followed by
// exactly the four numbered sections in order, each with non-empty
// content. Empty content after a header is invalid.
func ParseContractDefinition(contextScope string) (*ContractDefinition, error) {
	body := strings.TrimSpace(contextScope)
	if !strings.HasPrefix(body, contractPrefix) {
		return nil, fmt.Errorf("contextScope must begin with %q", contractPrefix)
	}
	body = strings.TrimSpace(body[len(contractPrefix):])

	// Locate each section header in order; each section's content runs
	// until the next header (or end of string for the last section).
	positions := make([]int, len(contractSections))
	for i, header := range contractSections {
		idx := strings.Index(body, header)
		if idx == -1 {
			return nil, fmt.Errorf("contextScope missing section %q", header)
		}
		if i > 0 && idx <= positions[i-1] {
			return nil, fmt.Errorf("contextScope section %q out of order", header)
		}
		positions[i] = idx
	}

	contents := make([]string, len(contractSections))
	for i, header := range contractSections {
		start := positions[i] + len(header)
		end := len(body)
		if i+1 < len(positions) {
			end = positions[i+1]
		}
		content := strings.TrimSpace(body[start:end])
		if content == "" {
			return nil, fmt.Errorf("contextScope section %q has empty content", header)
		}
		contents[i] = content
	}

	return &ContractDefinition{
		ResearchNote: contents[0],
		Input:        contents[1],
		Logic:        contents[2],
		Output:       contents[3],
	}, nil
}

package crawler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// EventParam represents a parameter in an event signature.
type EventParam struct {
	Name    string // Parameter name (e.g., "user", "amount")
	Type    string // Solidity type (e.g., "address", "uint256")
	Indexed bool   // Whether the parameter is indexed
}

// EventSignature represents a parsed event signature.
type EventSignature struct {
	Raw    string       // Original signature string
	Name   string       // Event name (e.g., "Deposited")
	Params []EventParam // Event parameters
}

// ParseEventSignature parses an event signature string into structured data.
// Supported formats:
//   - "Deposited(address,uint256)"
//   - "Deposited(address indexed user, uint256 amount)"
//   - "Deposited(address user, uint256 amount)"
func ParseEventSignature(sig string) (*EventSignature, error) {
	sig = strings.TrimSpace(sig)

	if sig == "" {
		return nil, fmt.Errorf("empty signature")
	}

	openParen := strings.Index(sig, "(")
	if openParen == -1 {
		return nil, fmt.Errorf("invalid signature: missing opening parenthesis")
	}

	eventName := strings.TrimSpace(sig[:openParen])
	if eventName == "" {
		return nil, fmt.Errorf("invalid signature: empty event name")
	}

	// Event names must start with an uppercase letter
	if !regexp.MustCompile(`^[A-Z][a-zA-Z0-9_]*$`).MatchString(eventName) {
		return nil, fmt.Errorf("invalid event name '%s': must start "+
			"with uppercase letter and contain only alphanumeric characters", eventName)
	}

	closeParen := strings.LastIndex(sig, ")")
	if closeParen == -1 {
		return nil, fmt.Errorf("invalid signature: missing closing parenthesis")
	}

	if closeParen <= openParen {
		return nil, fmt.Errorf("invalid signature: malformed parentheses")
	}

	paramsStr := sig[openParen+1 : closeParen]

	params, err := parseParameters(paramsStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}

	return &EventSignature{
		Raw:    sig,
		Name:   eventName,
		Params: params,
	}, nil
}

// ABIEvent builds the go-ethereum ABI event for this signature. The event ID
// (topic0) is derived from the canonical signature by abi.NewEvent.
func (s *EventSignature) ABIEvent() (abi.Event, error) {
	inputs := make(abi.Arguments, len(s.Params))
	for i, p := range s.Params {
		typ, err := abi.NewType(p.Type, "", nil)
		if err != nil {
			return abi.Event{}, fmt.Errorf("invalid type '%s' in event %s: %w",
				p.Type, s.Name, err)
		}
		inputs[i] = abi.Argument{
			Name:    p.Name,
			Type:    typ,
			Indexed: p.Indexed,
		}
	}

	return abi.NewEvent(s.Name, s.Name, false, inputs), nil
}

// parseParameters parses the parameter list from an event signature.
func parseParameters(paramsStr string) ([]EventParam, error) {
	paramsStr = strings.TrimSpace(paramsStr)

	if paramsStr == "" {
		return []EventParam{}, nil
	}

	paramStrings := splitParameters(paramsStr)

	params := make([]EventParam, 0, len(paramStrings))
	paramNames := make(map[string]bool)

	for i, paramStr := range paramStrings {
		param, err := parseParameter(strings.TrimSpace(paramStr), i)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter '%s': %w", paramStr, err)
		}

		if param.Name != "" {
			if paramNames[param.Name] {
				return nil, fmt.Errorf("duplicate parameter name: %s", param.Name)
			}
			paramNames[param.Name] = true
		}

		params = append(params, param)
	}

	return params, nil
}

// splitParameters splits parameter string by commas, handling nested structures.
func splitParameters(paramsStr string) []string {
	var params []string
	var current strings.Builder
	depth := 0

	for _, ch := range paramsStr {
		switch ch {
		case '(':
			depth++
			current.WriteRune(ch)
		case ')':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				params = append(params, current.String())
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		params = append(params, current.String())
	}

	return params
}

// parseParameter parses a single parameter string.
// Formats:
//   - "address" (type only)
//   - "address user" (type + name)
//   - "address indexed user" (type + indexed + name)
func parseParameter(paramStr string, index int) (EventParam, error) {
	if paramStr == "" {
		return EventParam{}, fmt.Errorf("empty parameter")
	}

	parts := strings.Fields(paramStr)
	if len(parts) == 0 {
		return EventParam{}, fmt.Errorf("empty parameter")
	}

	param := EventParam{}

	param.Type = parts[0]

	if !isValidSolidityType(param.Type) {
		return EventParam{}, fmt.Errorf("invalid Solidity type: %s", param.Type)
	}

	switch len(parts) {
	case 1:
		// Type only: "address"
		param.Name = fmt.Sprintf("param%d", index)
		param.Indexed = false

	case 2: //nolint:mnd
		// Type + name OR type + indexed (without name)
		if parts[1] == "indexed" {
			param.Indexed = true
			param.Name = fmt.Sprintf("param%d", index)
		} else {
			param.Name = parts[1]
			param.Indexed = false
		}

	case 3: //nolint:mnd
		// Type + indexed + name
		if parts[1] != "indexed" {
			return EventParam{}, fmt.Errorf("expected 'indexed' keyword, got '%s'", parts[1])
		}
		param.Indexed = true
		param.Name = parts[2]

	default:
		return EventParam{}, fmt.Errorf("too many parts in parameter definition")
	}

	if param.Name != "" && !regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`).MatchString(param.Name) {
		return EventParam{}, fmt.Errorf("invalid parameter name: %s", param.Name)
	}

	return param, nil
}

// isValidSolidityType checks if a string is a valid Solidity type.
func isValidSolidityType(typ string) bool {
	basicTypes := map[string]bool{
		"address": true,
		"bool":    true,
		"string":  true,
		"bytes":   true,
	}

	if basicTypes[typ] {
		return true
	}

	// Fixed-size bytes (bytes1 to bytes32)
	if matched, _ := regexp.MatchString(`^bytes([1-9]|[12][0-9]|3[0-2])$`, typ); matched {
		return true
	}

	// Unsigned integers (uint8 to uint256, in steps of 8)
	if matched, _ := regexp.MatchString(`^uint(8|16|24|32|40|48|56|64|72|80|88|96|104|112|120|128|136|144|152|160|168|176|184|192|200|208|216|224|232|240|248|256)?$`, typ); matched { //nolint:lll
		return true
	}

	// Signed integers (int8 to int256, in steps of 8)
	if matched, _ := regexp.MatchString(`^int(8|16|24|32|40|48|56|64|72|80|88|96|104|112|120|128|136|144|152|160|168|176|184|192|200|208|216|224|232|240|248|256)?$`, typ); matched { //nolint:lll
		return true
	}

	// Arrays (e.g., uint256[], address[3])
	if strings.HasSuffix(typ, "[]") {
		return isValidSolidityType(strings.TrimSuffix(typ, "[]"))
	}
	if matched := regexp.MustCompile(`\[\d+\]$`).FindStringIndex(typ); matched != nil {
		return isValidSolidityType(typ[:matched[0]])
	}

	return false
}

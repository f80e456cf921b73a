package http

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/technostore/technostore/go/node"
)

const txSchema = `{
  "type": "object",
  "required": ["from", "nonce", "method", "args", "signature"],
  "properties": {
    "from": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
    "nonce": {"type": "integer", "minimum": 0},
    "method": {"type": "string", "enum": ["addProduct", "buyProduct", "refundProduct"]},
    "args": {"type": "object"},
    "signature": {"type": "string", "pattern": "^0x[0-9a-fA-F]{130}$"}
  }
}`

const decimalPattern = `^[0-9]{1,78}$`

var argSchemas = map[string]string{
	node.MethodAddProduct: `{
  "type": "object",
  "required": ["name", "quantity", "price"],
  "properties": {
    "name": {"type": "string"},
    "quantity": {"type": "integer", "minimum": 0},
    "price": {"type": "string", "pattern": "` + decimalPattern + `"}
  }
}`,
	node.MethodBuyProduct: `{
  "type": "object",
  "required": ["index", "amount", "deadline", "signature"],
  "properties": {
    "index": {"type": "integer"},
    "amount": {"type": "string", "pattern": "` + decimalPattern + `"},
    "deadline": {"type": "string", "pattern": "` + decimalPattern + `"},
    "signature": {
      "oneOf": [
        {"type": "string", "pattern": "^0x[0-9a-fA-F]{130}$"},
        {
          "type": "object",
          "required": ["v", "r", "s"],
          "properties": {
            "v": {"type": "integer", "minimum": 0, "maximum": 255},
            "r": {"type": "string", "pattern": "^0x[0-9a-fA-F]{1,64}$"},
            "s": {"type": "string", "pattern": "^0x[0-9a-fA-F]{1,64}$"}
          }
        }
      ]
    }
  }
}`,
	node.MethodRefundProduct: `{
  "type": "object",
  "required": ["index"],
  "properties": {
    "index": {"type": "integer"}
  }
}`,
}

var (
	txValidator   = mustSchema(txSchema)
	argValidators = func() map[string]*gojsonschema.Schema {
		out := make(map[string]*gojsonschema.Schema, len(argSchemas))
		for method, schema := range argSchemas {
			out[method] = mustSchema(schema)
		}
		return out
	}()
)

func mustSchema(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}
	return s
}

// ValidationError lists every schema violation of a request body.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("request body does not match schema: %v", e.Errors)
}

// ValidateTx checks body against the transaction envelope schema and the
// argument schema of its method, then decodes it. Only the shape is checked;
// values are left to the node.
func ValidateTx(body []byte) (*node.Tx, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}
	if err := validate(txValidator, body); err != nil {
		return nil, err
	}

	var tx node.Tx
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	if err := validate(argValidators[tx.Method], tx.Args); err != nil {
		return nil, err
	}
	return &tx, nil
}

func validate(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return &ValidationError{Errors: errs}
}

package core

import (
	"fmt"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/sendfleet/campaignsync/internal/domain/model"
	apperrors "github.com/sendfleet/campaignsync/internal/errors"
)

// Recipient is one resolved workload entry: the phone number plus the
// display fields selected out of the spreadsheet row.
type Recipient struct {
	Phone     string            `json:"phone"`
	Name      string            `json:"name,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

// ResolveRecipients evaluates the JMESPath column mapping against every
// workload row. It fails with a validation error when an expression does not
// compile or a row yields no usable phone value, so a bad import is rejected
// before any start command reaches the channel.
func ResolveRecipients(rows []model.WorkloadRow, mapping *model.ColumnMapping) ([]Recipient, error) {
	if mapping == nil || mapping.Phone == "" {
		return nil, apperrors.ValidationField("mapping", "a phone column mapping is required")
	}

	phoneExpr, err := jmespath.Compile(mapping.Phone)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation,
			"invalid phone mapping %q", mapping.Phone)
	}

	var nameExpr jmespath.JMESPath
	if mapping.Name != "" {
		if nameExpr, err = jmespath.Compile(mapping.Name); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation,
				"invalid name mapping %q", mapping.Name)
		}
	}

	varExprs := make(map[string]jmespath.JMESPath, len(mapping.Variables))
	for key, expr := range mapping.Variables {
		compiled, cerr := jmespath.Compile(expr)
		if cerr != nil {
			return nil, apperrors.Wrapf(cerr, apperrors.ErrCodeValidation,
				"invalid mapping for variable %q: %q", key, expr)
		}
		varExprs[key] = compiled
	}

	out := make([]Recipient, 0, len(rows))
	for i, row := range rows {
		phone, rerr := evalString(phoneExpr, map[string]any(row))
		if rerr != nil || phone == "" {
			return nil, apperrors.Validationf("row %d has no phone value", i+1)
		}
		rec := Recipient{Phone: phone}
		if nameExpr != nil {
			rec.Name, _ = evalString(nameExpr, map[string]any(row))
		}
		if len(varExprs) > 0 {
			rec.Variables = make(map[string]string, len(varExprs))
			for key, expr := range varExprs {
				if v, _ := evalString(expr, map[string]any(row)); v != "" {
					rec.Variables[key] = v
				}
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// evalString evaluates expr against data and coerces the result to a string.
// Spreadsheet imports deliver phone numbers as strings or numbers depending
// on the source file, so both are accepted.
func evalString(expr jmespath.JMESPath, data any) (string, error) {
	v, err := expr.Search(data)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

package model

// Param coercion helpers used by SetParams implementations. Values
// arrive as interface{} from grid definitions and from JSON-decoded
// cache rows, where every number is a float64, so integer parameters
// must accept both forms.

// FloatParam extracts a float64 from v, accepting float64, int, and
// int64 inputs.
func FloatParam(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// IntParam extracts an int from v, accepting int, int64, and float64
// inputs. Fractional float64 values are rejected.
func IntParam(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != float64(int(x)) {
			return 0, false
		}
		return int(x), true
	default:
		return 0, false
	}
}

// StringParam extracts a string from v.
func StringParam(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// BoolParam extracts a bool from v.
func BoolParam(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

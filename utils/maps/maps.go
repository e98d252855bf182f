package maps

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Map2Struct Decode takes an input structure and uses reflection to translate it to
// the output structure. output must be a pointer to a map or struct.
// String values are decoded into time.Duration fields via time.ParseDuration.
func Map2Struct(input interface{}, output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// Get 根据点分路径从 map 中获取字段值，路径无法解析时返回 nil
// 支持 map[string]interface{} 和 map[string]string 两种容器
func Get(input interface{}, fieldName string) interface{} {
	if fieldName == "" {
		return nil
	}
	var current = input
	for _, part := range strings.Split(fieldName, ".") {
		if part == "" {
			return nil
		}
		switch m := current.(type) {
		case map[string]interface{}:
			v, ok := m[part]
			if !ok {
				return nil
			}
			current = v
		case map[string]string:
			v, ok := m[part]
			if !ok {
				return nil
			}
			current = v
		default:
			return nil
		}
	}
	return current
}

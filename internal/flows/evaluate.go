package flows

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/superbrain/gateway/internal/message"
)

func evaluate(t Trigger, msg *message.Unified) bool {
	actual := fieldValue(t.Field, msg)
	switch t.Operator {
	case "equals":
		return strings.EqualFold(actual, t.Value)
	case "contains":
		return strings.Contains(strings.ToLower(actual), strings.ToLower(t.Value))
	case "startsWith":
		return strings.HasPrefix(strings.ToLower(actual), strings.ToLower(t.Value))
	case "matches":
		re, err := regexp.Compile(t.Value)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	default:
		return false
	}
}

func fieldValue(field string, msg *message.Unified) string {
	switch field {
	case "content":
		return msg.Content
	case "platform":
		return msg.Platform
	case "senderId":
		return msg.From
	case "isGroup":
		return strconv.FormatBool(msg.IsGroup)
	default:
		return ""
	}
}

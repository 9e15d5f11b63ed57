// Package branch maps branch office codes to the names operators read in
// reports and SMS messages.
package branch

import "strings"

var displayNames = map[string]string{
	"DS_SJS": "石景山",
	"DS_DX":  "大兴",
	"DS_MTG": "门头沟",
	"DS_HR":  "怀柔",
	"DS_JY":  "缙阳",
	"DS_MY":  "檀州",
	"DS_LQ":  "良泉",
	"DS_TZ":  "通州",
	"DS_QB":  "清北",
	"DS_HD":  "海淀",
	"DS_CXD": "长辛店",
	"DS_CY":  "朝阳",
	"DS_SQ":  "市区",
	"DS_FT":  "丰台",
	"DS_JC":  "稽查",
}

// DisplayName returns the localized name of a branch code. Lookup ignores case;
// unknown codes come back unchanged.
func DisplayName(code string) string {
	if name, ok := displayNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

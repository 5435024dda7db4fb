package console

import "strings"

var catalogs = map[string]map[string]string{
	"en": {
		"dns_rewrites":               "DNS rewrites",
		"rewrite_add":                "Add DNS rewrite",
		"rewrite_edit":               "Edit DNS rewrite",
		"rewrite_confirm_delete":     "Are you sure you want to delete DNS rewrite for \"{{key}}\"?",
		"rewrite_search_placeholder": "Search by domain or answer",
		"rewrite_added":              "DNS rewrite for \"{{key}}\" successfully added",
		"rewrite_deleted":            "DNS rewrite for \"{{key}}\" successfully deleted",
		"rewrite_updated":            "DNS rewrite successfully updated",
		"rewrite_not_found":          "No DNS rewrites found",
		"domain":                     "Domain",
		"answer":                     "Answer",
		"loading":                    "Loading...",
		"confirm_hint":               "y: confirm  n: cancel",
		"modal_hint":                 "enter: save  esc: cancel  tab: next field",
		"page_hint":                  "/: search  a: add  e: edit  d: delete  q: quit",
	},
	"zh": {
		"dns_rewrites":               "DNS 重写",
		"rewrite_add":                "添加 DNS 重写",
		"rewrite_edit":               "编辑 DNS 重写",
		"rewrite_confirm_delete":     "您确定要删除 \"{{key}}\" 的 DNS 重写吗？",
		"rewrite_search_placeholder": "请输入主机记录或记录值",
		"rewrite_added":              "成功添加 \"{{key}}\" 的 DNS 重写",
		"rewrite_deleted":            "成功删除 \"{{key}}\" 的 DNS 重写",
		"rewrite_updated":            "DNS 重写已更新",
		"rewrite_not_found":          "未找到 DNS 重写",
		"domain":                     "主机记录",
		"answer":                     "记录值",
		"loading":                    "加载中...",
		"confirm_hint":               "y: 确认  n: 取消",
		"modal_hint":                 "enter: 保存  esc: 取消  tab: 切换输入框",
		"page_hint":                  "/: 搜索  a: 添加  e: 编辑  d: 删除  q: 退出",
	},
}

// Translator 按语言查找界面文案
type Translator struct {
	lang string
}

// NewTranslator 不支持的语言回退到英文
func NewTranslator(lang string) Translator {
	lang = strings.ToLower(lang)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if _, ok := catalogs[lang]; !ok {
		lang = "en"
	}
	return Translator{lang: lang}
}

func (t Translator) Lang() string { return t.lang }

// T 返回 key 对应的文案，{{name}} 由 vars 替换；缺失的 key 原样返回
func (t Translator) T(key string, vars map[string]string) string {
	msg, ok := catalogs[t.lang][key]
	if !ok {
		if msg, ok = catalogs["en"][key]; !ok {
			return key
		}
	}
	if len(vars) == 0 {
		return msg
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

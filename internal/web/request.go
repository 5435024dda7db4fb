package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/winspan/rewritedns/internal/rewrite"
)

var validate = validator.New()

// 可带 "*." 前缀与末尾点的主机名
var domainRegex = regexp.MustCompile(`^(\*\.)?[A-Za-z0-9_]([A-Za-z0-9_-]{0,62})(\.[A-Za-z0-9_]([A-Za-z0-9_-]{0,62}))*\.?$`)

func init() {
	validate.RegisterValidation("rwdomain", func(fl validator.FieldLevel) bool {
		return domainRegex.MatchString(fl.Field().String())
	})
}

type rewriteEntry struct {
	Domain string `json:"domain" validate:"required,max=253,rwdomain"`
	Answer string `json:"answer" validate:"required,max=253"`
}

func (e rewriteEntry) rule() rewrite.Rule {
	return rewrite.Rule{Domain: e.Domain, Answer: e.Answer}
}

// rewriteKey 指向已存在的规则，只做非空检查，历史数据里的任何条目都能被删改
type rewriteKey struct {
	Domain string `json:"domain" validate:"required"`
	Answer string `json:"answer" validate:"required"`
}

func (k rewriteKey) rule() rewrite.Rule {
	return rewrite.Rule{Domain: k.Domain, Answer: k.Answer}
}

type rewriteUpdate struct {
	Target rewriteKey   `json:"target"`
	Update rewriteEntry `json:"update"`
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("json.Decode: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

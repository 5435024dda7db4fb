package admin

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/winspan/rewritedns/internal/rewrite"
)

// listRewrites GET /control/rewrite/list?param=
func (a *Api) listRewrites(w http.ResponseWriter, r *http.Request) {
	rules := a.store.List(r.URL.Query().Get("param"))

	arr := make([]rewriteEntry, 0, len(rules))
	for _, rule := range rules {
		arr = append(arr, rewriteEntry{Domain: rule.Domain, Answer: rule.Answer})
	}
	WriteJSON(w, http.StatusOK, arr)
}

// addRewrite POST /control/rewrite/add
func (a *Api) addRewrite(w http.ResponseWriter, r *http.Request) {
	var req rewriteEntry
	if err := decode(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.store.Add(r.Context(), req.rule()); err != nil {
		a.writeStoreError(w, r, "添加", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// deleteRewrite POST /control/rewrite/delete，删除所有相同的条目
func (a *Api) deleteRewrite(w http.ResponseWriter, r *http.Request) {
	var req rewriteKey
	if err := decode(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := a.store.Delete(r.Context(), req.rule())
	if err != nil {
		a.writeStoreError(w, r, "删除", err)
		return
	}
	hlog.FromRequest(r).Debug().Int("removed", n).Str("domain", req.Domain).Msg("rewrite deleted")
	w.WriteHeader(http.StatusOK)
}

// updateRewrite PUT /control/rewrite/update，原位替换
func (a *Api) updateRewrite(w http.ResponseWriter, r *http.Request) {
	var req rewriteUpdate
	if err := decode(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.store.Update(r.Context(), req.Target.rule(), req.Update.rule()); err != nil {
		a.writeStoreError(w, r, "修改", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *Api) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, rewrite.ErrDuplicate):
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("DNS 解析 | 您当前 %s 的主机记录 %s", op, rewrite.ErrDuplicate))
	case errors.Is(err, rewrite.ErrNotFound), errors.Is(err, rewrite.ErrInvalid):
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Str("op", op).Msg("rewrite store failed")
		WriteError(w, http.StatusInternalServerError, "保存重写规则失败")
	}
}

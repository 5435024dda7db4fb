package console

import "github.com/winspan/rewritedns/internal/rewrite"

// ModalType 编辑弹窗的用途
type ModalType string

const (
	ModalAddRewrite  ModalType = "ADD_REWRITE"
	ModalEditRewrite ModalType = "EDIT_REWRITE"
)

// RewritesState 重写规则页面的全部状态，由 Store 持有
type RewritesState struct {
	List             []rewrite.Rule
	IsModalOpen      bool
	Processing       bool
	ProcessingAdd    bool
	ProcessingDelete bool
	ProcessingUpdate bool
	ModalType        ModalType
	// CurrentRewrite 仅在 ModalType 为 ModalEditRewrite 时非空
	CurrentRewrite *rewrite.Rule
	Notice         Notice
}

// ListParams 列表查询参数
type ListParams struct {
	Param string
}

// UpdateRequest 把 Target 替换为 Update
type UpdateRequest struct {
	Target rewrite.Rule `json:"target"`
	Update rewrite.Rule `json:"update"`
}

// ModalPayload 切换弹窗时携带的数据
type ModalPayload struct {
	Type    ModalType
	Rewrite *rewrite.Rule
}

// Notice 操作结果提示
type Notice struct {
	Text  string
	Error bool
}

func (n Notice) Empty() bool { return n.Text == "" }

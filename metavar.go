package fastspec

import "fmt"

// PrimType enumerates the "type" meta-variable kind of §4.1: primitive
// types plus the pointer/absence variants a boilerplate can specialize on.
type PrimType int

const (
	TypeInt32 PrimType = iota
	TypeInt64
	TypeUint32
	TypeUint64
	TypeFloat
	TypeDouble
	TypePointer
	TypeVoid // absence variant, e.g. a non-value-producing statement
)

func (t PrimType) String() string {
	switch t {
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeUint32:
		return "uint32"
	case TypeUint64:
		return "uint64"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypePointer:
		return "pointer"
	case TypeVoid:
		return "void"
	default:
		return "type?"
	}
}

// IsFloatingPoint reports whether values of this type live in XMM registers
// rather than general-purpose registers under the internal calling
// convention (§4.6).
func (t PrimType) IsFloatingPoint() bool {
	return t == TypeFloat || t == TypeDouble
}

// Size returns the in-memory size of a value of this type, in bytes.
func (t PrimType) Size() int {
	switch t {
	case TypeInt32, TypeUint32, TypeFloat:
		return 4
	default:
		return 8
	}
}

// OpKind enumerates the closed set of operator kinds used as an "enum"
// meta-variable (§4.1): arithmetic and comparison operators a template kind
// like ArithExpr or CompareExpr specializes on.
type OpKind int

const (
	OpAdd OpKind = iota
	OpSub
	OpMul
	OpDiv
	OpCmpEQ
	OpCmpNE
	OpCmpLT
	OpCmpLE
	OpCmpGT
	OpCmpGE
)

func (o OpKind) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpCmpEQ:
		return "cmp-eq"
	case OpCmpNE:
		return "cmp-ne"
	case OpCmpLT:
		return "cmp-lt"
	case OpCmpLE:
		return "cmp-le"
	case OpCmpGT:
		return "cmp-gt"
	case OpCmpGE:
		return "cmp-ge"
	default:
		return "op?"
	}
}

// OperandShape is the "operand-shape category" enum meta-variable from
// original_source/fastinterp/fastinterp_boilerplate_allowed_shapes.h: which
// operands of a binary expression arrive pinned in a register versus
// spilled to the stack frame.
type OperandShape int

const (
	ShapeBothPinned OperandShape = iota
	ShapeLeftPinnedRightSpilled
	ShapeLeftSpilledRightPinned
	ShapeBothSpilled
)

func (s OperandShape) String() string {
	switch s {
	case ShapeBothPinned:
		return "both-pinned"
	case ShapeLeftPinnedRightSpilled:
		return "left-pinned-right-spilled"
	case ShapeLeftSpilledRightPinned:
		return "left-spilled-right-pinned"
	case ShapeBothSpilled:
		return "both-spilled"
	default:
		return "shape?"
	}
}

// TemplateKind names a family of blueprints selected by a tuple of
// meta-variables (§4.1); the front-end picks the kind from the AST node
// shape, then the meta-tuple picks the specialization within it.
type TemplateKind int

const (
	KindArithExpr TemplateKind = iota
	KindCompareExpr
	KindAssignToVar
	KindReturn
	KindCondBranch
	KindLoopBody
	KindCallExpr
	KindPointerArith
	KindCast
)

func (k TemplateKind) String() string {
	switch k {
	case KindArithExpr:
		return "arith-expr"
	case KindCompareExpr:
		return "compare-expr"
	case KindAssignToVar:
		return "assign-to-var"
	case KindReturn:
		return "return"
	case KindCondBranch:
		return "cond-branch"
	case KindLoopBody:
		return "loop-body"
	case KindCallExpr:
		return "call-expr"
	case KindPointerArith:
		return "pointer-arith"
	case KindCast:
		return "cast"
	default:
		return "kind?"
	}
}

// MetaTuple is the closed tuple of meta-variable values selecting a single
// blueprint within a TemplateKind: a mix of PrimType, OpKind, OperandShape
// and bool values, in a fixed order per TemplateKind. It is hashed through
// the perfect-hash table in library.go, so it must be comparable and have a
// stable, order-sensitive string form.
type MetaTuple struct {
	Type     PrimType
	Op       OpKind
	Shape    OperandShape
	IsQuick  bool // "is-quick-access": for AssignToVar's load-immediate variants, the constant is zero and is synthesized with XOR instead of read from a placeholder
	NoExcept bool // "is-noexcept": this specialization cannot throw
	Spill    bool // "spill-output": result is written to a spill slot
}

// Key renders the tuple to a stable string used as the cuckoo table's hash
// input; every field is order-sensitive, mirroring how the offline builder
// enumerates cond<meta...>() Cartesian products in a fixed field order.
func (m MetaTuple) Key(kind TemplateKind) string {
	return fmt.Sprintf("%d|%d|%d|%d|%t|%t|%t", kind, m.Type, m.Op, m.Shape, m.IsQuick, m.NoExcept, m.Spill)
}

package registry

import "errors"

// ErrUnknownNodeType — тип узла не зарегистрирован.
var ErrUnknownNodeType = errors.New("unknown node type")

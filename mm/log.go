package mm

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("multimethods.mm")

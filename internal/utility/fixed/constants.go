package fixed

import "github.com/govalues/decimal"

var (
	Zero = Point{decimal.MustNew(0, 0)}
	Two  = Point{decimal.MustNew(2, 0)}

	// OnePip is the quote increment used as the profit unit for the
	// four-decimal currency pairs this engine trades.
	OnePip = Point{decimal.MustNew(1, 4)}
)

package precondition

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Token facade methods callable on an HTS token's EVM address
const tokenFacadeABI = `[
	{"type":"function","name":"associate","inputs":[],"outputs":[{"name":"responseCode","type":"uint256"}]},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// Router and adapter contracts expose a bulk association entry point
const participantABI = `[
	{"type":"function","name":"associateTokens","inputs":[{"name":"tokens","type":"address[]"}],"outputs":[]}
]`

var (
	tokenFacade = mustParseABI(tokenFacadeABI)
	participant = mustParseABI(participantABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

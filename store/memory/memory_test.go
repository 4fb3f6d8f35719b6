package memory_test

import (
	"testing"

	"github.com/warp/kirana-ledger/store/memory"
	"github.com/warp/kirana-ledger/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend {
		return memory.New()
	})
}

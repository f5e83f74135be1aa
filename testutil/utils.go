package testutil

import (
	"context"
	"testing"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"go.uber.org/mock/gomock"

	"github.com/babylonlabs-io/btc-staking/testutil/mocks"
	"github.com/babylonlabs-io/btc-staking/types"
)

// SignedBabylonTxPrefix prefixes the bytes returned by the mocked babylon
// provider so tests can tell them apart from the raw message.
var SignedBabylonTxPrefix = []byte("signed:")

// PrepareMockedBtcProvider returns a btc provider mock answering every
// request with signer.
func PrepareMockedBtcProvider(t *testing.T, signer *BtcSigner) *mocks.MockBtcProvider {
	ctl := gomock.NewController(t)
	mockBtcProvider := mocks.NewMockBtcProvider(ctl)

	mockBtcProvider.EXPECT().
		SignPsbt(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(signer.SignPsbt).
		AnyTimes()
	mockBtcProvider.EXPECT().
		SignMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(signer.SignMessage).
		AnyTimes()

	return mockBtcProvider
}

// PrepareMockedBabylonProvider returns a babylon provider mock that
// "signs" a message by prefixing its proto encoding.
func PrepareMockedBabylonProvider(t *testing.T) *mocks.MockBabylonProvider {
	ctl := gomock.NewController(t)
	mockBabylonProvider := mocks.NewMockBabylonProvider(ctl)

	mockBabylonProvider.EXPECT().
		SignTransaction(gomock.Any(), types.SigningStepCreateBTCDelegationMsg, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ types.SigningStep, msg sdk.Msg) ([]byte, error) {
			marshaler, ok := msg.(interface{ Marshal() ([]byte, error) })
			if !ok {
				t.Fatalf("message %T cannot be marshaled", msg)
			}
			bz, err := marshaler.Marshal()
			if err != nil {
				return nil, err
			}
			return append(append([]byte{}, SignedBabylonTxPrefix...), bz...), nil
		}).
		AnyTimes()

	return mockBabylonProvider
}

// PrepareMockedParamsLookup returns a params lookup mock serving params for
// every height and version.
func PrepareMockedParamsLookup(t *testing.T, params *types.StakingParams) *mocks.MockParamsLookup {
	ctl := gomock.NewController(t)
	mockParamsLookup := mocks.NewMockParamsLookup(ctl)

	mockParamsLookup.EXPECT().ParamsForHeight(gomock.Any()).Return(params, nil).AnyTimes()
	mockParamsLookup.EXPECT().ParamsForVersion(gomock.Any()).Return(params, nil).AnyTimes()

	return mockParamsLookup
}

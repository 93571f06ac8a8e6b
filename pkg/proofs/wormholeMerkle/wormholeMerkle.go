// Package wormholeMerkle binds raw accumulator messages to the merkle root attested
// by a VAA. It builds per-message inclusion proofs when a slot is assembled and
// re-validates them when update data is reconstructed for clients.
package wormholeMerkle

import (
	"bytes"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/wormhole"
	"github.com/pkg/errors"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	"golang.org/x/sync/errgroup"
)

// MerkleLeafPrefix_Message domain-separates message leaves from anything else
// hashed into the tree.
var MerkleLeafPrefix_Message = []byte{0x00}

var (
	ErrInvalidMerkleRoot = errors.New("invalid merkle root")
	ErrInvalidProof      = errors.New("invalid merkle proof")
	ErrSlotMismatch      = errors.New("accumulator messages and merkle root are for different slots")
	ErrNoMessages        = errors.New("no accumulator messages to prove")
)

// WormholeMerkleState is the verified half of an update: the root and the VAA
// that carried it.
type WormholeMerkleState struct {
	Root wormhole.WormholeMerkleRoot
	Vaa  []byte
}

// WormholeMerkleMessageProof proves one raw message is included under the root
// attested by Vaa.
type WormholeMerkleMessageProof struct {
	Vaa   []byte
	Proof *merkletree.Proof
}

// RawMessageWithMerkleProof is the input to update data reconstruction.
type RawMessageWithMerkleProof struct {
	Slot       types.Slot
	RawMessage []byte
	Proof      WormholeMerkleMessageProof
}

func encodeMessageLeaf(raw []byte) []byte {
	leaf := make([]byte, 0, len(MerkleLeafPrefix_Message)+len(raw))
	leaf = append(leaf, MerkleLeafPrefix_Message...)
	return append(leaf, raw...)
}

// MerkleizeMessages builds the accumulator tree over raw messages in their given order.
func MerkleizeMessages(rawMessages [][]byte) (*merkletree.MerkleTree, error) {
	if len(rawMessages) == 0 {
		return nil, ErrNoMessages
	}
	leaves := make([][]byte, 0, len(rawMessages))
	for _, raw := range rawMessages {
		leaves = append(leaves, encodeMessageLeaf(raw))
	}
	return merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
}

// VerifyProof checks that rawMessage is included under root.
func VerifyProof(root []byte, proof *merkletree.Proof, rawMessage []byte) (bool, error) {
	if proof == nil {
		return false, ErrInvalidProof
	}
	return merkletree.VerifyProofUsing(encodeMessageLeaf(rawMessage), false, proof, [][]byte{root}, keccak256.New())
}

// ConstructMessageStatesProofs returns one proof per raw message, in input order.
// It fails when the tree built from the messages does not hash to the attested root.
func ConstructMessageStatesProofs(acc *types.AccumulatorMessages, state *WormholeMerkleState) ([]WormholeMerkleMessageProof, error) {
	if acc.Slot != state.Root.Slot {
		return nil, errors.Wrapf(ErrSlotMismatch, "messages slot %d, root slot %d", acc.Slot, state.Root.Slot)
	}
	tree, err := MerkleizeMessages(acc.RawMessages)
	if err != nil {
		return nil, err
	}
	root := tree.Root()
	if !bytes.Equal(root, state.Root.Root[:]) {
		return nil, errors.Wrapf(ErrInvalidMerkleRoot, "slot %d", acc.Slot)
	}

	proofs := make([]WormholeMerkleMessageProof, len(acc.RawMessages))
	for i := range acc.RawMessages {
		p, err := tree.GenerateProofWithIndex(uint64(i), 0)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to generate proof for message %d", i)
		}
		proofs[i] = WormholeMerkleMessageProof{Vaa: state.Vaa, Proof: p}
	}

	g := new(errgroup.Group)
	g.SetLimit(8)
	for i, raw := range acc.RawMessages {
		g.Go(func() error {
			ok, err := VerifyProof(root, proofs[i].Proof, raw)
			if err != nil {
				return err
			}
			if !ok {
				return errors.Wrapf(ErrInvalidProof, "message %d in slot %d", i, acc.Slot)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return proofs, nil
}

// RootFromVaa extracts the attested merkle root from a serialized VAA.
func RootFromVaa(vaa []byte) (*wormhole.WormholeMerkleRoot, error) {
	_, root, err := wormhole.ParseMerkleRootVaa(vaa)
	if err != nil {
		return nil, err
	}
	return root, nil
}

func ensureValidProof(root *wormhole.WormholeMerkleRoot, msg RawMessageWithMerkleProof) error {
	ok, err := VerifyProof(root.Root[:], msg.Proof.Proof, msg.RawMessage)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrInvalidProof, "slot %d", msg.Slot)
	}
	return nil
}

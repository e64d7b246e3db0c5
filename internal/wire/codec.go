package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/roach88/relbridge/internal/plan"
)

// DomainPlan is the domain prefix for plan fingerprints.
// The version suffix allows the algorithm to change.
const DomainPlan = "relbridge/plan/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Marshal encodes a plan as Substrait binary protobuf.
func Marshal(p *plan.Plan) ([]byte, error) {
	msg, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

// Unmarshal decodes Substrait binary protobuf into a plan.
func Unmarshal(data []byte) (*plan.Plan, error) {
	msg := &pb.Plan{}
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return Decode(msg)
}

// MarshalJSON encodes a plan as Substrait protobuf JSON.
func MarshalJSON(p *plan.Plan) ([]byte, error) {
	msg, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
}

// UnmarshalJSON decodes Substrait protobuf JSON into a plan.
func UnmarshalJSON(data []byte) (*plan.Plan, error) {
	msg := &pb.Plan{}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("unmarshal plan json: %w", err)
	}
	return Decode(msg)
}

// Fingerprint returns a content hash of the plan's deterministic binary
// encoding. Equal plans have equal fingerprints.
func Fingerprint(p *plan.Plan) (string, error) {
	data, err := Marshal(p)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainPlan, data), nil
}

package migration

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// typeKey is the discriminator key carried by every serialized operation.
const typeKey = "type"

// Operations is an ordered operation list that (de)serializes each entry as
// a mapping tagged with its Kind.
type Operations []Operation

var decoders = map[Kind]func(*yaml.Node) (Operation, error){
	KindAddFeature:       decodeAs[AddFeature],
	KindRemoveFeature:    decodeAs[RemoveFeature],
	KindAddEntity:        decodeAs[AddEntity],
	KindRemoveEntity:     decodeAs[RemoveEntity],
	KindAddAction:        decodeAs[AddAction],
	KindRemoveAction:     decodeAs[RemoveAction],
	KindAddConstraint:    decodeAs[AddConstraint],
	KindRemoveConstraint: decodeAs[RemoveConstraint],
	KindAddField:         decodeAs[AddField],
	KindRemoveField:      decodeAs[RemoveField],
	KindModifyEntity:     decodeAs[ModifyEntity],
	KindUpdateAction:     decodeAs[UpdateAction],
	KindChangeValidation: decodeAs[ChangeValidation],
}

func decodeAs[T Operation](node *yaml.Node) (Operation, error) {
	var op T
	if err := node.Decode(&op); err != nil {
		return nil, err
	}
	return op, nil
}

// Kinds lists every known operation kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindAddFeature, KindRemoveFeature,
		KindAddEntity, KindRemoveEntity,
		KindAddAction, KindRemoveAction,
		KindAddConstraint, KindRemoveConstraint,
		KindAddField, KindRemoveField,
		KindModifyEntity, KindUpdateAction, KindChangeValidation,
	}
}

// UnmarshalYAML decodes a sequence of tagged operation mappings.
func (ops *Operations) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*ops = nil
		return nil
	}
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: operations must be a list", value.Line)
	}
	out := make(Operations, 0, len(value.Content))
	for idx, item := range value.Content {
		op, err := decodeOperation(item)
		if err != nil {
			return fmt.Errorf("operation[%d]: %w", idx, err)
		}
		out = append(out, op)
	}
	*ops = out
	return nil
}

func decodeOperation(node *yaml.Node) (Operation, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: operation must be a mapping", node.Line)
	}
	var head struct {
		Type Kind `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, err
	}
	if head.Type == "" {
		return nil, fmt.Errorf("line %d: operation is missing %q", node.Line, typeKey)
	}
	decode, ok := decoders[head.Type]
	if !ok {
		return nil, fmt.Errorf("line %d: unknown operation type %q", node.Line, head.Type)
	}
	op, err := decode(node)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", head.Type, err)
	}
	return op, nil
}

// MarshalYAML renders each operation as a mapping led by its type key.
func (ops Operations) MarshalYAML() (any, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for idx, op := range ops {
		if op == nil {
			return nil, fmt.Errorf("operation[%d]: nil operation", idx)
		}
		var body yaml.Node
		if err := body.Encode(op); err != nil {
			return nil, fmt.Errorf("operation[%d]: %w", idx, err)
		}
		head := []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: typeKey},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(op.Kind())},
		}
		body.Content = append(head, body.Content...)
		seq.Content = append(seq.Content, &body)
	}
	return seq, nil
}

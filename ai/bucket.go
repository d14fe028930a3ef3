package ai

import "strings"

// Bucket names.
const (
	BucketCode     = "code"
	BucketLearning = "learning"
	BucketCreative = "creative"
	BucketGeneral  = "general"
)

// Bucket is a keyword-defined category of canned responses.
type Bucket struct {
	Name      string
	Keywords  []string
	Responses []string
}

// Matches reports whether the lower-cased prompt contains any of the bucket keywords.
func (b *Bucket) Matches(lowerPrompt string) bool {
	for _, kw := range b.Keywords {
		if strings.Contains(lowerPrompt, kw) {
			return true
		}
	}
	return false
}

// Catalog is an ordered list of buckets plus the fallback used when none matches.
type Catalog struct {
	Fallback Bucket
	Buckets  []Bucket
}

// Classify returns the first bucket whose keywords occur in prompt, compared
// case-insensitively. Order is priority: buckets are never combined.
func (c *Catalog) Classify(prompt string) *Bucket {
	lower := strings.ToLower(prompt)
	for i := range c.Buckets {
		if c.Buckets[i].Matches(lower) {
			return &c.Buckets[i]
		}
	}
	return &c.Fallback
}

// Lookup returns the bucket with the given name, including the fallback.
func (c *Catalog) Lookup(name string) (*Bucket, bool) {
	for i := range c.Buckets {
		if c.Buckets[i].Name == name {
			return &c.Buckets[i], true
		}
	}
	if c.Fallback.Name == name {
		return &c.Fallback, true
	}
	return nil, false
}

// DefaultCatalog returns the built-in buckets in priority order: code, learning, creative,
// with general as the fallback.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Buckets: []Bucket{
			{
				Name:     BucketCode,
				Keywords: []string{"code", "program", "function"},
				Responses: []string{
					"I'd be happy to help you with coding! Here's a solution:\n\n```python\ndef example_function():\n    # Your code here\n    return \"Hello, World!\"\n```\n\nThis function demonstrates the basic structure. Would you like me to explain any specific part or help with a different programming language?",
					"Great question about programming! Let me break this down for you:\n\n1. **Planning**: First, understand what you want to achieve\n2. **Implementation**: Write clean, readable code\n3. **Testing**: Verify your solution works correctly\n\nWhat specific programming challenge are you working on?",
					"I can help you with that coding task! Here are some best practices to consider:\n\n- Write clear, descriptive variable names\n- Add comments to explain complex logic\n- Break large functions into smaller, reusable pieces\n- Handle edge cases and errors gracefully\n\nWhat programming language are you using?",
				},
			},
			{
				Name:     BucketLearning,
				Keywords: []string{"learn", "explain", "how", "what"},
				Responses: []string{
					"I'd be happy to explain that concept! Let me break it down into simple terms:\n\n**Key Points:**\n- This is a fundamental concept that...\n- It works by...\n- The main benefits are...\n\nWould you like me to dive deeper into any specific aspect?",
					"Great question! Here's a comprehensive explanation:\n\nThis concept is important because it helps us understand how things work in the real world. Think of it like building blocks - each piece connects to create something larger.\n\nWould you like some practical examples to illustrate this better?",
					"Let me help you understand this step by step:\n\n1. **Foundation**: The basic principle is...\n2. **Application**: This is used when...\n3. **Examples**: You might see this in...\n\nWhat specific part would you like me to elaborate on?",
				},
			},
			{
				Name:     BucketCreative,
				Keywords: []string{"creative", "idea", "brainstorm", "write"},
				Responses: []string{
					"I love creative challenges! Here are some innovative ideas to get you started:\n\n🎨 **Creative Approaches:**\n- Try combining unexpected elements\n- Look at the problem from different perspectives\n- Use analogies from nature or other fields\n\nWhat type of creative project are you working on?",
					"Creativity thrives on exploration! Here's my brainstorming approach:\n\n**Divergent Thinking:**\n- Generate as many ideas as possible\n- Don't judge ideas initially\n- Build on others' suggestions\n\n**Convergent Thinking:**\n- Evaluate and refine the best concepts\n- Consider feasibility and impact\n\nWhat's your creative goal?",
					"Let's spark some creativity! Here are some techniques that often work well:\n\n- **Mind mapping**: Visual connections between ideas\n- **\"What if\" scenarios**: Explore possibilities\n- **Cross-pollination**: Combine ideas from different fields\n\nTell me more about what you're trying to create!",
				},
			},
		},
		Fallback: Bucket{
			Name: BucketGeneral,
			Responses: []string{
				"That's an interesting question! I'm here to help you explore this topic. Based on what you've shared, I think we should consider multiple perspectives and approaches.\n\nWhat specific aspect would you like to focus on first?",
				"I appreciate you bringing this up! As your AI partner, I want to make sure I give you the most helpful response possible.\n\nLet me think about this systematically and provide you with some actionable insights. What's your main goal here?",
				"Thanks for sharing that with me! I find this topic fascinating, and there are several ways we could approach it.\n\nWould you prefer a detailed analysis, practical steps, or perhaps some examples to illustrate the concepts?",
				"Great question! I'm designed to be your collaborative partner, so let's work through this together.\n\nFrom my understanding, this involves several key considerations. What's most important to you in this situation?",
				"I'm glad you asked! This is exactly the kind of collaborative problem-solving I enjoy. Let me share some thoughts and then we can build on them together.\n\nWhat's your experience with this topic so far?",
			},
		},
	}
}

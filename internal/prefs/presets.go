package prefs

import "strings"

// EthosPreset is a ready-made ethos statement.
type EthosPreset struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

var EthosPresets = []EthosPreset{
	{
		Title:       "The Pragmatic Reformer",
		Description: "I value practical, incremental improvements that make the DAO more effective, transparent, and sustainable. I support proposals that are well-scoped, actionable, and grounded in reality, even if they aren't the most exciting. I'm skeptical of hype and prefer ideas that deliver real utility and long-term value. I care about getting things done and making steady progress over time.",
	},
	{
		Title:       "The Decentralization Maximalist",
		Description: "I strongly believe in decentralization, transparency, and distributed power. I support proposals that empower token holders, minimize reliance on centralized actors, and protect open participation. I'm opposed to anything that concentrates control, limits access, or compromises the values that make DAOs meaningful. I prioritize integrity over convenience.",
	},
	{
		Title:       "The Impact-Driven Idealist",
		Description: "I care about using governance to advance ethical, social, or environmental goals. I support initiatives that create positive externalities, increase inclusivity, or align with broader missions beyond profit. I'm comfortable making long-term investments in change, even if they don't have immediate returns. Purpose and impact matter more to me than short-term gains.",
	},
	{
		Title:       "The Ecosystem Optimizer",
		Description: "I look at proposals through the lens of broader network health. I support ideas that strengthen infrastructure, tooling, security, or composability. I care about building things that other DAOs, protocols, or contributors can benefit from. I want to see our ecosystem become more connected, reliable, and resilient over time.",
	},
	{
		Title:       "The Risk-Tolerant Innovator",
		Description: "I'm drawn to bold, unconventional ideas, even if they might fail. I support proposals that test boundaries, explore new models, or introduce ambitious upgrades. I see experimentation as essential to progress and I'm willing to accept uncertainty if the upside is transformative. I believe governance should enable rapid iteration and breakthrough innovation.",
	},
	{
		Title:       "The Minimalist Voter",
		Description: "I prefer to keep things simple and focused. I'm only interested in voting when a proposal clearly aligns with or challenges my core principles. I avoid unnecessary complexity and tend to skip proposals that feel marginal or low impact. I value clarity, relevance, and low noise in governance.",
	},
	{
		Title:       "The Community First Advocate",
		Description: "I prioritize the needs and voices of the active community. I support proposals that broaden participation, reward contributors fairly, and reduce gatekeeping. I believe that DAOs should be driven by those who are most involved and care most deeply. I trust grassroots energy over top-down direction.",
	},
	{
		Title:       "The Treasury Hawk",
		Description: "I pay close attention to spending and financial sustainability. I support proposals with clear deliverables, reasonable budgets, and transparent accountability. I oppose anything that feels vague, overfunded, or misaligned with long-term ROI. I believe treasury decisions should be disciplined and based on results.",
	},
	{
		Title:       "The Rational Evaluator",
		Description: "I approach governance with a focus on reason, consistency, and fairness. I evaluate each proposal on its own merits, with clear criteria and attention to detail. I avoid emotional or ideological voting and look for sound logic, evidence, and alignment with good process. I believe clear thinking leads to better outcomes.",
	},
	{
		Title:       "The Passive Protector",
		Description: "I don't want to be involved in every vote, but I care about guarding against harmful decisions. I support proposals that maintain basic safeguards, protect against centralization, and defend core values. I generally prefer to abstain unless something directly challenges my principles. I want governance that stays aligned without constant oversight.",
	},
}

// PresetByTitle finds a preset ignoring case and a leading "The ".
func PresetByTitle(title string) (EthosPreset, bool) {
	want := normalizeTitle(title)
	for _, p := range EthosPresets {
		if normalizeTitle(p.Title) == want {
			return p, true
		}
	}
	return EthosPreset{}, false
}

func normalizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "the ")
}

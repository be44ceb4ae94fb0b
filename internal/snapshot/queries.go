package snapshot

// SpaceQuery fetches space metadata and counts.
const SpaceQuery = `
  query Space($id: String!) {
    space(id: $id) {
      id
      name
      about
      avatar
      network
      symbol
      members
      admins
      strategies {
        name
      }
      proposalsCount
      votesCount
      followersCount
    }
  }
`

// ProposalsQuery fetches up to $limit proposals, newest first.
const ProposalsQuery = `
  query Proposals($space: String!, $limit: Int) {
    proposals(
      first: $limit,
      skip: 0,
      where: { space: $space },
      orderBy: "created",
      orderDirection: desc
    ) {
      id
      title
      body
      choices
      start
      end
      snapshot
      state
      author
      space {
        id
        name
      }
      scores
      scores_total
      votes
    }
  }
`
